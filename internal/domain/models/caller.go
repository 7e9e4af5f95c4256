package models

// Caller is the authenticated principal acting on the engine
type Caller struct {
	ID           int64    `json:"id"`
	Name         string   `json:"name"`
	Email        string   `json:"email"`
	Role         string   `json:"role"`
	Permissions  []string `json:"permissions,omitempty"`
	Capabilities []string `json:"capabilities,omitempty"`
}

// HasCapability reports whether the caller was granted the named capability
func (c Caller) HasCapability(capability string) bool {
	for _, granted := range c.Capabilities {
		if granted == capability {
			return true
		}
	}
	return false
}

// UserID returns the caller id as a nullable column value
func (c Caller) UserID() *int64 {
	if c.ID == 0 {
		return nil
	}
	id := c.ID
	return &id
}
