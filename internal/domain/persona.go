package domain

// Persona es un "shape" remoto direccionable por su vanity URL.
type Persona struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

// PersonaIcon es la forma y color asignados a una persona para la UI.
type PersonaIcon struct {
	Shape string `json:"shape"`
	Color string `json:"color"`
}
