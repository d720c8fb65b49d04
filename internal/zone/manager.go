// Package zone attributes tracked objects to the named polygonal regions
// configured on a camera record, using point-in-polygon containment on each
// track's bounding-box center.
package zone

import (
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/argus-io/ingest-agent/internal/frame"
	"github.com/argus-io/ingest-agent/internal/store"
)

// Manager attributes a track's bounding box to zero or more named zones.
type Manager interface {
	Attribute(bbox [4]int) map[string]frame.ZoneAttribution
}

// PolygonManager is the default Manager, built from a camera record's
// configured zones.
type PolygonManager struct {
	mu    sync.RWMutex
	zones map[string]orb.Polygon
}

// NewPolygonManager converts each store.Zone's flat point list into an
// orb.Polygon. Zones with fewer than 3 points are skipped; they cannot
// enclose anything.
func NewPolygonManager(zones []store.Zone) *PolygonManager {
	m := &PolygonManager{zones: make(map[string]orb.Polygon, len(zones))}
	for _, z := range zones {
		if len(z.Polygon) < 3 {
			continue
		}
		ring := make(orb.Ring, 0, len(z.Polygon)+1)
		for _, pt := range z.Polygon {
			ring = append(ring, orb.Point{pt[0], pt[1]})
		}
		if ring[0] != ring[len(ring)-1] {
			ring = append(ring, ring[0])
		}
		m.zones[z.Name] = orb.Polygon{ring}
	}
	return m
}

// Attribute reports, for every configured zone, whether the bounding box's
// center point sits inside it.
func (m *PolygonManager) Attribute(bbox [4]int) map[string]frame.ZoneAttribution {
	m.mu.RLock()
	defer m.mu.RUnlock()

	center := orb.Point{
		float64(bbox[0]+bbox[2]) / 2,
		float64(bbox[1]+bbox[3]) / 2,
	}

	out := make(map[string]frame.ZoneAttribution, len(m.zones))
	for name, poly := range m.zones {
		loc := frame.LocationOutside
		if planar.PolygonContains(poly, center) {
			loc = frame.LocationInside
		}
		out[name] = frame.ZoneAttribution{Location: loc}
	}
	return out
}

// Reload atomically swaps the zone set, used when a camera record is
// refreshed without restarting the agent.
func (m *PolygonManager) Reload(zones []store.Zone) {
	fresh := NewPolygonManager(zones)
	m.mu.Lock()
	m.zones = fresh.zones
	m.mu.Unlock()
}
