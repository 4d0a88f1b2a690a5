package catalogs

import (
	"errors"
	"testing"
)

const testResources = `[{"id":0,"name":"Iron"},{"id":1,"name":"Steel"},{"id":2,"name":"Coal"}]`

const testBuildings = `[
  {"id":0,"name":"Mine","extractor":true,"produced":{"0":10},"max_workers":5},
  {"id":1,"name":"Factory","consumed":{"0":5},"produced":{"1":3},"max_workers":2},
  {"id":2,"name":"Smelter","prerequisites":[1],"consumed":{"0":1,"2":1},"produced":{"1":1},"max_workers":1,"construction_cost":{"1":4}}
]`

func TestLoadBytes_DependencyIndex(t *testing.T) {
	cat, idx, err := LoadBytes([]byte(testBuildings), []byte(testResources))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cat.Buildings) != 3 || len(cat.Resources) != 3 {
		t.Fatalf("unexpected table sizes: %d buildings, %d resources", len(cat.Buildings), len(cat.Resources))
	}
	if got := idx.Free; len(got) != 1 || got[0] != 0 {
		t.Fatalf("free = %v, want [0]", got)
	}
	if got := idx.Consumers[0]; len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("consumers[Iron] = %v, want [1 2]", got)
	}
	if got := idx.Consumers[2]; len(got) != 1 || got[0] != 2 {
		t.Fatalf("consumers[Coal] = %v, want [2]", got)
	}
	if got := idx.Resources(); len(got) != 2 || got[0] != 0 || got[1] != 2 {
		t.Fatalf("resource order = %v", got)
	}
	if !idx.IsFree(0) || idx.IsFree(1) {
		t.Fatalf("IsFree mismatch")
	}
	if cat.BuildingsDigest == "" || cat.ResourcesDigest == "" {
		t.Fatalf("expected digests")
	}
}

func TestDependencyIndex_EveryBuildingCountedOnce(t *testing.T) {
	cat, idx, err := LoadBytes([]byte(testBuildings), []byte(testResources))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	for _, id := range cat.BuildingIDs() {
		b := cat.Buildings[id]
		n := 0
		for _, list := range idx.Consumers {
			for _, c := range list {
				if c == id {
					n++
				}
			}
		}
		if len(b.Consumed) == 0 {
			if n != 0 || !idx.IsFree(id) {
				t.Fatalf("building %d should only be free", id)
			}
			continue
		}
		if n != len(b.Consumed) || idx.IsFree(id) {
			t.Fatalf("building %d appears %d times, want %d", id, n, len(b.Consumed))
		}
	}
}

func TestLoadBytes_DataErrors(t *testing.T) {
	cases := []struct {
		name      string
		buildings string
		resources string
	}{
		{"bad json", `[{`, testResources},
		{"bad resources json", testBuildings, `nope`},
		{"unknown produced", `[{"id":0,"name":"A","produced":{"9":1}}]`, testResources},
		{"unknown consumed", `[{"id":0,"name":"A","consumed":{"9":1}}]`, testResources},
		{"unknown cost", `[{"id":0,"name":"A","construction_cost":{"9":1}}]`, testResources},
		{"unknown prerequisite", `[{"id":0,"name":"A","prerequisites":[7]}]`, testResources},
		{"zero cost", `[{"id":0,"name":"A","construction_cost":{"0":0}}]`, testResources},
		{"duplicate building", `[{"id":0,"name":"A"},{"id":0,"name":"B"}]`, testResources},
		{"duplicate resource", `[]`, `[{"id":0,"name":"A"},{"id":0,"name":"B"}]`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := LoadBytes([]byte(tc.buildings), []byte(tc.resources))
			if err == nil {
				t.Fatalf("expected error")
			}
			var de *DataError
			if !errors.As(err, &de) || !IsDataError(err) {
				t.Fatalf("expected DataError, got %T %v", err, err)
			}
		})
	}
}

func TestLoad_ShippedConfigs(t *testing.T) {
	cat, idx, err := Load("../../../configs")
	if err != nil {
		t.Fatalf("load configs: %v", err)
	}
	if len(cat.BuildingIDs()) == 0 || len(cat.ResourceIDs()) == 0 {
		t.Fatalf("expected non-empty catalog")
	}
	if len(idx.Free) == 0 {
		t.Fatalf("expected at least one unconstrained producer")
	}
}

func TestLoad_MissingDir(t *testing.T) {
	if _, _, err := Load(t.TempDir()); !IsDataError(err) {
		t.Fatalf("expected DataError for missing files, got %v", err)
	}
}
