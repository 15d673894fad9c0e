package service

import (
	"regexp"
	"strings"

	"shapeshift/internal/domain"
)

const DefaultMediaHost = "files.shapes.inc"

// MediaClassifier detecta URLs de adjuntos (imagen/audio) alojadas en un host fijo.
type MediaClassifier struct {
	image *regexp.Regexp
	audio *regexp.Regexp
}

// NewMediaClassifier compila los patrones para host; vacío usa DefaultMediaHost.
func NewMediaClassifier(host string) MediaClassifier {
	host = strings.TrimSpace(host)
	if host == "" {
		host = DefaultMediaHost
	}
	prefix := `(?i)https://` + regexp.QuoteMeta(host) + `/\S+\.`
	return MediaClassifier{
		image: regexp.MustCompile(prefix + `(?:png|jpe?g|gif)\b`),
		audio: regexp.MustCompile(prefix + `mp3\b`),
	}
}

var defaultMediaClassifier = NewMediaClassifier(DefaultMediaHost)

// ImageURL devuelve la primera URL de imagen encontrada o "".
func (c MediaClassifier) ImageURL(text string) string {
	return c.image.FindString(text)
}

// AudioURL devuelve la primera URL de audio encontrada o "".
func (c MediaClassifier) AudioURL(text string) string {
	return c.audio.FindString(text)
}

// Classify revisa imagen antes que audio: un mensaje con ambas se muestra como imagen.
func (c MediaClassifier) Classify(text string) (domain.Media, bool) {
	if u := c.ImageURL(text); u != "" {
		return domain.Media{Kind: domain.MediaImage, URL: u}, true
	}
	if u := c.AudioURL(text); u != "" {
		return domain.Media{Kind: domain.MediaAudio, URL: u}, true
	}
	return domain.Media{}, false
}

func ExtractImageURL(text string) string { return defaultMediaClassifier.ImageURL(text) }

func ExtractAudioURL(text string) string { return defaultMediaClassifier.AudioURL(text) }

func ClassifyMedia(text string) (domain.Media, bool) { return defaultMediaClassifier.Classify(text) }
