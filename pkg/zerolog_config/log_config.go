// Package zerolog_config wires the global zerolog logger: pretty console
// output always, plus ECS-formatted events shipped to Elasticsearch when
// ELASTICSEARCH_URL is set.
package zerolog_config

import (
	"bytes"
	"fmt"
	"net/http"
	"os"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.elastic.co/ecszerolog"
)

var startupOnce sync.Once

// ElasticsearchWriter sends logs directly to Elasticsearch
type ElasticsearchWriter struct {
	URL string
}

func (ew ElasticsearchWriter) Write(p []byte) (n int, err error) {
	resp, err := http.Post(
		ew.URL+"/_doc",
		"application/json",
		bytes.NewBuffer(p),
	)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return 0, fmt.Errorf("elasticsearch returned %d", resp.StatusCode)
	}

	return len(p), nil
}

// Startup configures the global logger for the named service. Reads
// ELASTICSEARCH_URL and LOG_INDEX from the environment; without a URL,
// logs go to the console only.
func Startup(service string) {
	startupOnce.Do(func() {
		configure(service, os.Getenv("ELASTICSEARCH_URL"), envOr("LOG_INDEX", "logs"))
	})
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func configure(service, elasticsearchURL, index string) {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)

	consoleWriter := zerolog.ConsoleWriter{Out: os.Stdout}

	if elasticsearchURL == "" {
		log.Logger = zerolog.New(consoleWriter).With().
			Str("app", service).
			Timestamp().Logger()
		return
	}

	ecsLogger := ecszerolog.New(&ElasticsearchWriter{
		URL: elasticsearchURL + "/" + index,
	})

	multi := zerolog.MultiLevelWriter(
		ecsLogger,
		consoleWriter,
	)

	log.Logger = zerolog.New(multi).With().
		Str("app", service).
		Timestamp().Logger()
}
