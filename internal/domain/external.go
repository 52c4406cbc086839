package domain

// Externally-owned entities. Fetched from collaborator services, never
// persisted by this core.

type UserRecord struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// UserSummary is the projection of a UserRecord exposed on widget responses.
// Role is only populated when the viewing caller is an administrator.
type UserSummary struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}

type Vocabulary struct {
	ResourceID  string   `json:"resourceId"`
	Tags        []string `json:"tags"`
	Application string   `json:"application"`
}

type Metadata struct {
	ResourceID string         `json:"resourceId"`
	Fields     map[string]any `json:"fields"`
}

type Collection struct {
	ID        string               `json:"id"`
	Resources []CollectionResource `json:"resources"`
}

type CollectionResource struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}
