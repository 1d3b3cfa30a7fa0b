// routes.go
package web

import (
	"net/http"

	"FlightAnalytics/src/config"
	"FlightAnalytics/src/processor"

	"github.com/gorilla/mux"
)

// Logger is what the handlers need from storage.Logger.
type Logger interface {
	processor.Logger
	Error(msg string)
	Subscribe() <-chan string
	Unsubscribe(ch <-chan string)
}

// Server serves the dashboard views over the current dataset.
type Server struct {
	data *processor.DatasetWrapper
	dcfg *config.DataConfig
	log  Logger
	load func() (*processor.Dataset, error)
}

func NewServer(data *processor.DatasetWrapper, dcfg *config.DataConfig, log Logger, load func() (*processor.Dataset, error)) *Server {
	if dcfg == nil {
		dcfg = config.DefaultDataConfig()
	}
	return &Server{data: data, dcfg: dcfg, log: log, load: load}
}

// Router registers every route on a fresh mux.Router.
func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()
	router.Use(corsMiddleware)

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", s.HealthHandler()).Methods("GET", "OPTIONS")
	api.HandleFunc("/years", s.YearsHandler()).Methods("GET", "OPTIONS")
	api.HandleFunc("/yearly/total", s.YearlyTotalHandler()).Methods("GET", "OPTIONS")
	api.HandleFunc("/yearly/domestic", s.YearlyDomesticHandler()).Methods("GET", "OPTIONS")
	api.HandleFunc("/yearly/international", s.YearlyInternationalHandler()).Methods("GET", "OPTIONS")
	api.HandleFunc("/passengers", s.PassengersHandler()).Methods("GET", "OPTIONS")
	api.HandleFunc("/airports", s.AirportsHandler()).Methods("GET", "OPTIONS")
	api.HandleFunc("/top", s.TopHandler()).Methods("GET", "OPTIONS")
	api.HandleFunc("/dashboard", s.DashboardHandler()).Methods("GET", "OPTIONS")
	api.HandleFunc("/report.xlsx", s.ReportHandler()).Methods("GET", "OPTIONS")
	api.HandleFunc("/admin/reload", s.ReloadHandler()).Methods("POST", "OPTIONS")

	router.HandleFunc("/logs", s.LogsHandler()).Methods("GET")
	return router
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
