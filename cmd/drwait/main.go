// drwait blocks until an asynchronous DataRobot operation resolves, so
// shell pipelines and CI jobs can wait on model builds the same way the
// library does. It prints the resolved resource URL on stdout and
// reports the outcome through its exit code.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/reverbdotcom/datarobot-2.25.1-sub000/pkg/async"
	"github.com/reverbdotcom/datarobot-2.25.1-sub000/pkg/config"
	"github.com/reverbdotcom/datarobot-2.25.1-sub000/pkg/datarobot"
	"github.com/reverbdotcom/datarobot-2.25.1-sub000/pkg/logging"
)

// Exit codes, stable for scripting.
const (
	exitResolved = 0
	exitFailed   = 1
	exitTimedOut = 2
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("drwait", flag.ContinueOnError)
	statusURL := fs.String("status-url", "", "status URL to resolve, absolute or relative to the endpoint")
	project := fs.String("project", "", "project id, combined with -job")
	job := fs.String("job", "", "job id, combined with -project")
	jobType := fs.String("type", "job", "what -job names: job, model or predict")
	maxWait := fs.Duration("max-wait", datarobot.DefaultMaxWait, "wall-clock budget for the wait")
	configFile := fs.String("config", "", "profile file (default: $DATAROBOT_CONFIG_FILE, then the user config dir)")
	listen := fs.String("listen", "", "optional address serving /health and /metrics while waiting")
	pretty := fs.Bool("pretty", false, "human-readable log output")
	verbose := fs.Bool("verbose", false, "debug logging")
	if err := fs.Parse(args); err != nil {
		return exitFailed
	}

	logCfg := logging.DefaultConfig()
	logCfg.Pretty = *pretty
	if *verbose {
		logCfg.Level = logging.LevelDebug
	}
	logging.Setup(logCfg)
	logger := logging.NewLogger("drwait")

	target, err := waitTarget(*statusURL, *project, *job, *jobType)
	if err != nil {
		logger.Error().Err(err).Msg("Invalid arguments")
		fs.Usage()
		return exitFailed
	}

	// config.Load owns the precedence rules; route the flag through it.
	if *configFile != "" {
		os.Setenv(config.EnvConfigFile, *configFile)
	}
	profile, err := config.Load()
	if err != nil {
		logger.Error().Err(err).Msg("Configuration error")
		return exitFailed
	}

	client, err := datarobot.New(profile.ClientConfig())
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create client")
		return exitFailed
	}

	if *listen != "" {
		mux := http.NewServeMux()
		mux.HandleFunc("/health", healthHandler)
		mux.Handle("/metrics", promhttp.Handler())
		go func() {
			logger.Info().Str("addr", *listen).Msg("Serving /health and /metrics")
			if err := http.ListenAndServe(*listen, mux); err != nil {
				logger.Error().Err(err).Msg("Listener failed")
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	logger.Info().
		Str("url", target).
		Dur("max_wait", *maxWait).
		Msg("Waiting for operation")

	res, err := client.WaitForAsyncResolution(ctx, target, *maxWait)
	if err != nil {
		var timeout *async.TimeoutError
		switch {
		case errors.As(err, &timeout):
			logger.Error().Err(err).Dur("elapsed", time.Since(start)).Msg("Wait budget exhausted")
			return exitTimedOut
		case errors.Is(err, context.Canceled):
			logger.Warn().Dur("elapsed", time.Since(start)).Msg("Wait cancelled")
			return exitFailed
		default:
			logger.Error().Err(err).Dur("elapsed", time.Since(start)).Msg("Operation did not resolve")
			return exitFailed
		}
	}

	logger.Info().
		Str("location", res.Location).
		Str("status", res.Status.Status).
		Dur("elapsed", time.Since(start)).
		Msg("Operation resolved")

	if res.Location != "" {
		fmt.Println(res.Location)
	} else {
		fmt.Println(res.Status.Status)
	}
	return exitResolved
}

// waitTarget maps the flags onto the status URL to resolve.
func waitTarget(statusURL, project, job, jobType string) (string, error) {
	if statusURL != "" {
		return statusURL, nil
	}
	if project == "" || job == "" {
		return "", fmt.Errorf("need -status-url, or -project together with -job")
	}

	switch jobType {
	case "job":
		return "projects/" + project + "/jobs/" + job + "/", nil
	case "model":
		return "projects/" + project + "/modelJobs/" + job + "/", nil
	case "predict":
		return "projects/" + project + "/predictJobs/" + job + "/", nil
	default:
		return "", fmt.Errorf("unknown -type %q: want job, model or predict", jobType)
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}
