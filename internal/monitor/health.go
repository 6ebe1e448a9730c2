package monitor

import (
	"encoding/json"
	"net/http"

	"github.com/veesix-networks/reflector/pkg/port"
)

type healthResponse struct {
	Status    string `json:"status"`
	Port      string `json:"port,omitempty"`
	Link      string `json:"link,omitempty"`
	Available int    `json:"pool_available,omitempty"`
	InUse     int    `json:"pool_in_use,omitempty"`
}

func HealthzHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "application/json")
		rw.WriteHeader(http.StatusOK)
		json.NewEncoder(rw).Encode(healthResponse{
			Status: "ok",
		})
	}
}

// ReadyzHandler reports ready while the port link is up.
func ReadyzHandler(src Sources) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "application/json")

		resp := healthResponse{}
		ready := false
		if src.Port != nil {
			info := src.Port.Info()
			resp.Port = info.Name
			resp.Link = info.Link.String()
			ready = info.Link == port.LinkUp
		}
		if src.Pool != nil {
			s := src.Pool.Stats()
			resp.Available = s.Available
			resp.InUse = s.InUse
		}

		if ready {
			resp.Status = "ready"
			rw.WriteHeader(http.StatusOK)
		} else {
			resp.Status = "not_ready"
			rw.WriteHeader(http.StatusServiceUnavailable)
		}

		json.NewEncoder(rw).Encode(resp)
	}
}
