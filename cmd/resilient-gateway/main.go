package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	log "github.com/Financial-Times/go-logger"
	"github.com/gorilla/mux"
	cli "github.com/jawher/mow.cli"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	client "github.com/site-platform/resilient-gateway"
)

const appName = "resilient-gateway"

func main() {
	app := cli.App(appName, "Resilient request gateway for the portfolio backend services.")

	environment := app.String(cli.StringOpt{
		Name:   "environment",
		Value:  "development",
		Desc:   "Environment tag (e.g. development, staging, production)",
		EnvVar: "ENVIRONMENT",
	})

	port := app.Int(cli.IntOpt{
		Name:   "port",
		Value:  8080,
		Desc:   "Port to listen on",
		EnvVar: "PORT",
	})

	logLevel := app.String(cli.StringOpt{
		Name:   "logLevel",
		Value:  "INFO",
		Desc:   "Logging level (DEBUG, INFO, WARN, ERROR)",
		EnvVar: "LOG_LEVEL",
	})

	endpointsFile := app.String(cli.StringOpt{
		Name:   "endpointsFile",
		Value:  "",
		Desc:   "Optional YAML file with additional endpoint definitions",
		EnvVar: "ENDPOINTS_FILE",
	})

	probeInterval := app.Int(cli.IntOpt{
		Name:   "probeInterval",
		Value:  30,
		Desc:   "Interval between endpoint health sweeps, in seconds",
		EnvVar: "PROBE_INTERVAL",
	})

	app.Action = func() {
		log.InitLogger(appName, *logLevel)

		ctx := client.Context{
			DeploymentKind: *environment,
			IsDevelopment:  *environment == "development",
		}

		cfg := client.Config{
			ProbeInterval: time.Duration(*probeInterval) * time.Second,
		}
		if *endpointsFile != "" {
			extra, err := client.LoadEndpointsFile(*endpointsFile)
			if err != nil {
				log.WithError(err).Errorf("Cannot load endpoints file %s", *endpointsFile)
				os.Exit(1)
			}
			cfg.Endpoints = extra
		}

		requestClient := client.New(ctx, cfg)
		requestClient.Start()
		defer requestClient.Stop()

		feeder := client.NewPrometheusFeeder(*environment, requestClient)
		go feeder.Feed()

		handler := client.NewHandler(requestClient, *environment)
		listen(handler, *port)
	}

	if err := app.Run(os.Args); err != nil {
		panic(fmt.Sprintf("Cannot run the app. Error was: %v", err))
	}
}

func listen(handler *client.Handler, port int) {
	router := mux.NewRouter()
	handler.Register(router)
	router.Handle("/__metrics", promhttp.Handler())

	if err := http.ListenAndServe(fmt.Sprintf(":%d", port), router); err != nil {
		panic(fmt.Sprintf("Cannot set up HTTP listener. Error was: %v", err))
	}
}
