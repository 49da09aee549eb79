// README: Read-only collaborator entities: users, vehicles, providers, mechanics.
package directory

import "roadaid/internal/types"

type User struct {
	ID          types.ID
	Name        string
	Email       string
	PhoneNumber string
}

type Vehicle struct {
	ID           types.ID
	OwnerID      types.ID
	Make         string
	Model        string
	Year         int
	LicensePlate string
}

type Provider struct {
	ID           types.ID
	BusinessName string
	ProviderType string
	PhoneNumber  string
	Rating       float64
	Location     types.Point
}

type Mechanic struct {
	ID         types.ID
	ProviderID types.ID
	Name       string
}

// BelongsTo reports whether the mechanic works for the given provider.
func (m *Mechanic) BelongsTo(providerID types.ID) bool {
	return m.ProviderID == providerID
}
