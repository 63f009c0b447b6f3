package export

import (
	"context"
	"io"
)

// InventoryExport flattens the topology to one row per endpoint. Plants,
// workshops and WUPs without children still get a row of their own.
type InventoryExport struct {
	plants PlantLister
}

func NewInventoryExport(plants PlantLister) *InventoryExport {
	return &InventoryExport{plants: plants}
}

func (r *InventoryExport) Generate(ctx context.Context, params Params) (io.Reader, error) {
	t, err := newTable("plant_id", "plant_name", "site", "security_zone", "workshop_id", "wup_id", "wup_name", "wup_version", "endpoint_id", "endpoint_type", "host", "port")
	if err != nil {
		return nil, err
	}

	for _, p := range sortedPlants(r.plants) {
		if !params.ComponentID.IsEmpty() && p.ID != params.ComponentID {
			continue
		}
		plant := []string{p.ID.String(), p.Name, p.Site, p.SecurityZone}

		workshops := sortedWorkshops(p)
		if len(workshops) == 0 {
			if err := t.row(append(plant, "", "", "", "", "", "", "", "")...); err != nil {
				return nil, err
			}
		}
		for _, ws := range workshops {
			wups := sortedWUPs(ws)
			if len(wups) == 0 {
				if err := t.row(append(plant, ws.ID.String(), "", "", "", "", "", "", "")...); err != nil {
					return nil, err
				}
			}
			for _, wup := range wups {
				prefix := append(append([]string{}, plant...), ws.ID.String(), wup.ID.String(), wup.Name, wup.Version)
				endpoints := sortedEndpoints(wup)
				if len(endpoints) == 0 {
					if err := t.row(append(prefix, "", "", "", "")...); err != nil {
						return nil, err
					}
				}
				for _, ep := range endpoints {
					if err := t.row(append(prefix, ep.ID.String(), ep.EndpointType, ep.HostDNSName, portString(ep.Port))...); err != nil {
						return nil, err
					}
				}
			}
		}
	}

	return t.finish()
}
