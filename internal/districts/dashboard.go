package districts

import (
	"strings"
	"time"
	"unicode"

	"github.com/sirenwatch/siren-backend/internal/sirens"
)

type DashboardSiren struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Type        []string      `json:"type"`
	Location    string        `json:"location"`
	Status      sirens.Status `json:"status"`
	LastChecked time.Time     `json:"lastChecked"`
	Latitude    float64       `json:"latitude"`
	Longitude   float64       `json:"longitude"`
}

type DashboardBlock struct {
	ID         string           `json:"id"`
	Name       string           `json:"name"`
	ParentSite string           `json:"parent_site"`
	Sirens     []DashboardSiren `json:"sirens"`
}

type DashboardDistrict struct {
	ID     string           `json:"id"`
	Name   string           `json:"name"`
	Blocks []DashboardBlock `json:"blocks"`
}

// BlockID derives the dashboard id of a block: "b" followed by the lowercased
// ASCII letters and digits of its name.
func BlockID(name string) string {
	var b strings.Builder
	b.WriteByte('b')
	for _, r := range strings.ToLower(name) {
		if r < unicode.MaxASCII && (unicode.IsLower(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// BuildDashboard nests sirens under the district and block they name. Sirens
// whose district or block is not listed are left out.
func BuildDashboard(all []District, list []sirens.Siren) []DashboardDistrict {
	type key struct{ district, block string }
	byBlock := make(map[key][]DashboardSiren)
	for _, s := range list {
		k := key{s.District, s.Block}
		types := []string(s.Types)
		if types == nil {
			types = []string{}
		}
		byBlock[k] = append(byBlock[k], DashboardSiren{
			ID:          s.ID,
			Name:        s.Name,
			Type:        types,
			Location:    s.District,
			Status:      s.Status,
			LastChecked: s.LastChecked,
			Latitude:    s.Location.Lat,
			Longitude:   s.Location.Lng,
		})
	}

	out := make([]DashboardDistrict, 0, len(all))
	for _, d := range all {
		blocks := make([]DashboardBlock, 0, len(d.Blocks))
		for _, name := range d.Blocks {
			members := byBlock[key{d.Name, name}]
			if members == nil {
				members = []DashboardSiren{}
			}
			blocks = append(blocks, DashboardBlock{
				ID:         BlockID(name),
				Name:       name,
				ParentSite: name,
				Sirens:     members,
			})
		}
		out = append(out, DashboardDistrict{ID: d.ID, Name: d.Name, Blocks: blocks})
	}
	return out
}
