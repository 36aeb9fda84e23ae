// pkg/registry/schema.go
package registry

type BranchType string

const (
	BranchTypePublic    BranchType = "public"
	BranchTypeSmart     BranchType = "smart"
	BranchTypeEducation BranchType = "education"
)

func (t BranchType) Valid() bool {
	switch t {
	case BranchTypePublic, BranchTypeSmart, BranchTypeEducation:
		return true
	}
	return false
}

// Document is the on-disk form of a branch registry.
type Document struct {
	Version     string   `json:"version"`
	LastUpdated string   `json:"lastUpdated"`
	Branches    []Branch `json:"branches"`
}

// Branch is one physical library location.
type Branch struct {
	ID      string     `json:"id"`
	Name    string     `json:"name"`
	Type    BranchType `json:"type"`
	Address string     `json:"address"`
	Phone   string     `json:"phone"`
	Hours   string     `json:"hours"`
	URL     string     `json:"url"`
	Lat     float64    `json:"lat"`
	Lng     float64    `json:"lng"`
}

type Stats struct {
	Total     int `json:"total"`
	Public    int `json:"public"`
	Smart     int `json:"smart"`
	Education int `json:"education"`
}
