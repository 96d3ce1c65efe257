package api

import (
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"stealthcompany.com/firecdc/internal/cdc"
	"stealthcompany.com/firecdc/internal/metrics"
)

// SetupRoutes configures and returns the HTTP router
func SetupRoutes(svc *cdc.Service) *mux.Router {
	s := NewServer(svc)

	r := mux.NewRouter()
	r.Use(metrics.Middleware)

	// fire wire protocol
	r.HandleFunc("/fire/cdc.json", s.CreateCdc).Methods("POST")
	r.HandleFunc("/fire/{cdcId}/patient/list.json", s.ListPatients).Methods("GET")
	r.HandleFunc("/fire/{cdcId}/patient/summary.json", s.PatientSummary).Methods("GET")
	r.HandleFunc("/fire/{cdcId}/patient/{classifier:[a-zA-Z]+}.json", s.UpdateDocument).Methods("PUT")

	r.HandleFunc("/health", s.Health).Methods("GET")

	// Prometheus metrics endpoint
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	return r
}
