package catalogs

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// BuildingID identifies a building type. Ids are small and stable across saves.
type BuildingID uint8

// ResourceID identifies a resource type.
type ResourceID uint8

// Catalog holds the immutable building and resource tables. It is loaded once
// and shared read-only by every player and the tick loop.
type Catalog struct {
	Buildings map[BuildingID]*Building
	Resources map[ResourceID]*Resource

	BuildingsDigest string
	ResourcesDigest string

	buildingIDs []BuildingID
	resourceIDs []ResourceID
}

type Building struct {
	ID               BuildingID            `json:"id"`
	Name             string                `json:"name"`
	Extractor        bool                  `json:"extractor"`
	Prerequisites    []BuildingID          `json:"prerequisites,omitempty"`
	Produced         map[ResourceID]uint32 `json:"produced,omitempty"`
	Consumed         map[ResourceID]uint32 `json:"consumed,omitempty"`
	MaxWorkers       uint32                `json:"max_workers"`
	ConstructionCost map[ResourceID]uint32 `json:"construction_cost,omitempty"`
}

type Resource struct {
	ID   ResourceID `json:"id"`
	Name string     `json:"name"`
}

// DependencyIndex maps every resource to the building types consuming it.
// Building types that consume nothing are listed in Free instead.
type DependencyIndex struct {
	Consumers map[ResourceID][]BuildingID
	Free      []BuildingID

	resourceOrder []ResourceID
}

// DataError reports a malformed or inconsistent catalog. It is fatal at startup.
type DataError struct {
	File string
	Msg  string
	Err  error
}

func (e *DataError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.File, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.File, e.Msg)
}

func (e *DataError) Unwrap() error { return e.Err }

// Load reads buildings.json and resources.json from configDir.
func Load(configDir string) (*Catalog, *DependencyIndex, error) {
	buildings, err := os.ReadFile(filepath.Join(configDir, "buildings.json"))
	if err != nil {
		return nil, nil, &DataError{File: "buildings.json", Msg: "read", Err: err}
	}
	resources, err := os.ReadFile(filepath.Join(configDir, "resources.json"))
	if err != nil {
		return nil, nil, &DataError{File: "resources.json", Msg: "read", Err: err}
	}
	return LoadBytes(buildings, resources)
}

// LoadBytes parses and validates both tables and derives the dependency index.
func LoadBytes(buildingsJSON, resourcesJSON []byte) (*Catalog, *DependencyIndex, error) {
	c := &Catalog{
		Buildings:       map[BuildingID]*Building{},
		Resources:       map[ResourceID]*Resource{},
		BuildingsDigest: sha256Hex(buildingsJSON),
		ResourcesDigest: sha256Hex(resourcesJSON),
	}

	var resources []Resource
	if err := json.Unmarshal(resourcesJSON, &resources); err != nil {
		return nil, nil, &DataError{File: "resources.json", Msg: "parse", Err: err}
	}
	for i := range resources {
		r := resources[i]
		if _, dup := c.Resources[r.ID]; dup {
			return nil, nil, &DataError{File: "resources.json", Msg: fmt.Sprintf("duplicate resource id %d", r.ID)}
		}
		c.Resources[r.ID] = &r
	}

	var buildings []Building
	if err := json.Unmarshal(buildingsJSON, &buildings); err != nil {
		return nil, nil, &DataError{File: "buildings.json", Msg: "parse", Err: err}
	}
	for i := range buildings {
		b := buildings[i]
		if _, dup := c.Buildings[b.ID]; dup {
			return nil, nil, &DataError{File: "buildings.json", Msg: fmt.Sprintf("duplicate building id %d", b.ID)}
		}
		c.Buildings[b.ID] = &b
	}

	if err := c.validate(); err != nil {
		return nil, nil, err
	}

	for id := range c.Buildings {
		c.buildingIDs = append(c.buildingIDs, id)
	}
	sort.Slice(c.buildingIDs, func(i, j int) bool { return c.buildingIDs[i] < c.buildingIDs[j] })
	for id := range c.Resources {
		c.resourceIDs = append(c.resourceIDs, id)
	}
	sort.Slice(c.resourceIDs, func(i, j int) bool { return c.resourceIDs[i] < c.resourceIDs[j] })

	return c, NewDependencyIndex(c), nil
}

func (c *Catalog) validate() error {
	for _, b := range c.Buildings {
		for _, pre := range b.Prerequisites {
			if _, ok := c.Buildings[pre]; !ok {
				return &DataError{File: "buildings.json", Msg: fmt.Sprintf("building %d (%s): unknown prerequisite %d", b.ID, b.Name, pre)}
			}
		}
		for field, m := range map[string]map[ResourceID]uint32{
			"produced":          b.Produced,
			"consumed":          b.Consumed,
			"construction_cost": b.ConstructionCost,
		} {
			for rid := range m {
				if _, ok := c.Resources[rid]; !ok {
					return &DataError{File: "buildings.json", Msg: fmt.Sprintf("building %d (%s): %s references unknown resource %d", b.ID, b.Name, field, rid)}
				}
			}
		}
		for rid, qt := range b.ConstructionCost {
			if qt == 0 {
				return &DataError{File: "buildings.json", Msg: fmt.Sprintf("building %d (%s): zero construction cost for resource %d", b.ID, b.Name, rid)}
			}
		}
	}
	return nil
}

// BuildingIDs returns every building id in ascending order.
func (c *Catalog) BuildingIDs() []BuildingID { return c.buildingIDs }

// ResourceIDs returns every resource id in ascending order.
func (c *Catalog) ResourceIDs() []ResourceID { return c.resourceIDs }

func (c *Catalog) Building(id BuildingID) (*Building, bool) {
	b, ok := c.Buildings[id]
	return b, ok
}

func (c *Catalog) Resource(id ResourceID) (*Resource, bool) {
	r, ok := c.Resources[id]
	return r, ok
}

// NewDependencyIndex derives the reverse consumption index from a catalog.
// Consumer lists and Free are sorted so iteration is deterministic.
func NewDependencyIndex(c *Catalog) *DependencyIndex {
	idx := &DependencyIndex{Consumers: map[ResourceID][]BuildingID{}}
	for _, id := range c.BuildingIDs() {
		b := c.Buildings[id]
		if len(b.Consumed) == 0 {
			idx.Free = append(idx.Free, id)
			continue
		}
		for rid := range b.Consumed {
			idx.Consumers[rid] = append(idx.Consumers[rid], id)
		}
	}
	for rid, list := range idx.Consumers {
		sort.Slice(list, func(i, j int) bool { return list[i] < list[j] })
		idx.resourceOrder = append(idx.resourceOrder, rid)
	}
	sort.Slice(idx.resourceOrder, func(i, j int) bool { return idx.resourceOrder[i] < idx.resourceOrder[j] })
	return idx
}

// Resources returns the consumed resources in ascending id order.
func (idx *DependencyIndex) Resources() []ResourceID { return idx.resourceOrder }

func (idx *DependencyIndex) IsFree(id BuildingID) bool {
	for _, f := range idx.Free {
		if f == id {
			return true
		}
	}
	return false
}

// IsDataError reports whether err came from catalog loading.
func IsDataError(err error) bool {
	var de *DataError
	return errors.As(err, &de)
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
