package monitor

import (
	"encoding/json"
	"net/http"

	"github.com/veesix-networks/reflector/pkg/logger"
)

type logLevelResponse struct {
	Default    logger.LogLevel            `json:"default"`
	Components map[string]logger.LogLevel `json:"components"`
}

// LogLevelHandler shows and changes log levels at runtime.
//
//	GET    /loglevel                              current levels
//	PUT    /loglevel?component=port&level=debug   override one component
//	DELETE /loglevel?component=port               drop the override
func LogLevelHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		component := r.URL.Query().Get("component")

		switch r.Method {
		case http.MethodGet:
		case http.MethodPut, http.MethodPost:
			if component == "" {
				http.Error(rw, "component is required", http.StatusBadRequest)
				return
			}
			level, err := logger.ParseLevel(r.URL.Query().Get("level"))
			if err != nil {
				http.Error(rw, err.Error(), http.StatusBadRequest)
				return
			}
			logger.SetComponentLevel(component, level)
			logger.Component(logger.Monitor).Info("Log level changed", "component", component, "level", level)
		case http.MethodDelete:
			if component == "" {
				http.Error(rw, "component is required", http.StatusBadRequest)
				return
			}
			logger.ClearComponentLevel(component)
		default:
			rw.Header().Set("Allow", "GET, PUT, POST, DELETE")
			http.Error(rw, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		rw.Header().Set("Content-Type", "application/json")
		rw.WriteHeader(http.StatusOK)
		json.NewEncoder(rw).Encode(logLevelResponse{
			Default:    logger.GetDefaultLevel(),
			Components: logger.GetComponentLevels(),
		})
	}
}
