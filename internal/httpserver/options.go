package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/promptexify/promptexify/internal/httpmw"
	"github.com/promptexify/promptexify/internal/log"
	"github.com/promptexify/promptexify/internal/probe"
)

type Options struct {
	Logger log.Logger
	Port   int

	UseRecoverMW bool
	// OnPanic is the metrics hook fired per recovered panic.
	OnPanic func()

	MetricsMW func(http.Handler) http.Handler

	// Pipeline runs the per-request security stages. Required for any
	// deployment that serves real traffic; nil only in tests that target
	// the plumbing around it.
	Pipeline *httpmw.SecurityPipeline

	// FloodMW is the per-instance flood guard (per-IP token buckets). Runs
	// just inside client IP resolution so it sees the resolved address.
	FloodMW func(http.Handler) http.Handler

	ClientIPOpts httpmw.ClientIPOptions

	// Probes registers the ops endpoints on the main router.
	Probes *probe.API

	// Routes registers application routes.
	Routes func(chi.Router)

	// NotFound serves unmatched paths and methods.
	NotFound http.Handler
}
