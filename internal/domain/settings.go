package domain

// Settings reemplaza lo que el cliente web guardaba en local storage.
type Settings struct {
	APIKey       string    `json:"api_key,omitempty"`
	AppAuthToken string    `json:"app_auth_token,omitempty"`
	Onboarded    bool      `json:"onboarded"`
	Chatbots     []Persona `json:"chatbots"`
}

// Credentials agrupa lo necesario para autenticar una llamada al proveedor.
type Credentials struct {
	APIKey        string
	AppID         string
	UserAuthToken string
	UserID        string
}

// UsesAppAuth indica si se debe preferir el par app id + token de usuario.
func (c Credentials) UsesAppAuth() bool {
	return c.AppID != "" && c.UserAuthToken != ""
}
