package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/lessonloop/lessonloop/internal/api/tutor"
	"github.com/lessonloop/lessonloop/internal/artifacts"
	"github.com/lessonloop/lessonloop/internal/chat"
	"github.com/lessonloop/lessonloop/internal/config"
	"github.com/lessonloop/lessonloop/internal/domain"
	"github.com/lessonloop/lessonloop/internal/jobs"
	"github.com/lessonloop/lessonloop/internal/storage"
	"github.com/lessonloop/lessonloop/internal/storage/memory"
	"github.com/lessonloop/lessonloop/internal/storage/sqlite"
	"github.com/lessonloop/lessonloop/internal/telemetry"
	"github.com/lessonloop/lessonloop/internal/tokens"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	sessionID := flag.String("session", "", "session to resume (default: new session)")
	verbose := flag.Bool("v", false, "enable debug logging")
	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	httpClient := http.DefaultClient
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer("lessonloop", logger)
		if err != nil {
			log.Fatalf("Failed to initialize tracer: %v", err)
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
			}
		}()
		httpClient = telemetry.HTTPClient()
	}

	store, err := openStore(cfg)
	if err != nil {
		log.Fatalf("Failed to open transcript store: %v", err)
	}
	if store != nil {
		defer store.Close()
	}

	client := tutor.NewClient(cfg.API.Token,
		tutor.WithBaseURL(cfg.API.URL),
		tutor.WithHTTPClient(httpClient),
		tutor.WithLogger(logger))

	sid := *sessionID
	resuming := sid != ""
	if sid == "" {
		sid = uuid.NewString()
	}

	session := chat.NewSession(chat.SessionConfig{
		SessionID:   sid,
		Client:      client,
		Model:       cfg.Chat.Model,
		Estimator:   tokens.NewEstimator(),
		TokenBudget: cfg.Chat.Budget,
		Store:       store,
		Logger:      logger,
	})
	if resuming {
		if err := session.Seed(context.Background()); err != nil {
			log.Fatalf("Failed to load session history: %v", err)
		}
	}

	tracker := jobs.NewTracker(client,
		jobs.WithPollInterval(cfg.Jobs.PollInterval()),
		jobs.WithLogger(logger))
	gallery := artifacts.NewCollection()
	resolver := jobs.NewResolver(gallery, logger)

	// Ctrl-C aborts the in-flight turn instead of killing the process.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		for sig := range sigChan {
			if sig == syscall.SIGTERM || !session.Streaming() {
				fmt.Println()
				os.Exit(0)
			}
			session.Cancel()
		}
	}()

	fmt.Printf("lessonloop session %s (type /help for commands)\n", sid)
	repl(session, client, tracker, resolver, gallery, logger)
}

func openStore(cfg *config.Config) (storage.TranscriptStore, error) {
	switch cfg.Storage.Type {
	case "sqlite":
		return sqlite.New(cfg.Storage.Path)
	case "memory":
		return memory.New(), nil
	case "none", "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Storage.Type)
	}
}

func repl(session *chat.Session, client *tutor.Client, tracker *jobs.Tracker,
	resolver *jobs.Resolver, gallery *artifacts.Collection, logger *slog.Logger) {

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			if quit := runCommand(line, session, client, tracker, resolver, gallery, logger); quit {
				return
			}
			continue
		}

		if err := session.SendMessage(context.Background(), line); err != nil {
			fmt.Println(userMessage(err))
			continue
		}
		printLastAssistant(session)
	}
}

// runCommand handles slash commands; returns true on /quit.
func runCommand(line string, session *chat.Session, client *tutor.Client,
	tracker *jobs.Tracker, resolver *jobs.Resolver, gallery *artifacts.Collection,
	logger *slog.Logger) bool {

	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "/quit", "/exit":
		return true

	case "/help":
		fmt.Println(`commands:
  /episode <module-id>   start generating an audio episode
  /cancel <job-id>       request cancellation of a generation job
  /artifacts             list the artifact gallery
  /progress              show learning objective progress
  /quit                  exit`)

	case "/progress":
		p := session.Progress()
		fmt.Printf("objectives: %d/%d complete\n", p.Completed, p.Total)

	case "/artifacts":
		items := gallery.Snapshot()
		if len(items) == 0 {
			fmt.Println("no artifacts yet")
		}
		for _, a := range items {
			state := "ready"
			if domain.IsJobReference(a.ID) {
				state = "generating"
			}
			fmt.Printf("  %-12s %s (%s)\n", a.Kind, a.ID, state)
		}

	case "/episode":
		if arg == "" {
			fmt.Println("usage: /episode <module-id>")
			return false
		}
		startEpisode(arg, client, tracker, resolver, gallery, logger)

	case "/cancel":
		if arg == "" {
			fmt.Println("usage: /cancel <job-id>")
			return false
		}
		accepted, err := tracker.Cancel(context.Background(), arg)
		if err != nil {
			fmt.Println(userMessage(err))
			return false
		}
		if accepted {
			fmt.Println("cancellation requested")
		} else {
			fmt.Println("job is past the point of cancellation")
		}

	default:
		fmt.Printf("unknown command %s\n", cmd)
	}
	return false
}

// startEpisode kicks off generation, inserts a gallery placeholder, and
// watches the job in the background until the placeholder is resolved.
func startEpisode(moduleID string, client *tutor.Client, tracker *jobs.Tracker,
	resolver *jobs.Resolver, gallery *artifacts.Collection, logger *slog.Logger) {

	jobID, err := client.CreateEpisode(context.Background(), &tutor.EpisodeRequest{ModuleID: moduleID})
	if err != nil {
		fmt.Println(userMessage(err))
		return
	}

	ref := domain.NewJobReference(jobID).String()
	gallery.Add(artifacts.Artifact{
		ID:        ref,
		Kind:      "episode",
		Title:     "Audio episode for " + moduleID,
		CreatedAt: time.Now(),
	})
	fmt.Printf("episode generation started (job %s)\n", jobID)

	go func() {
		final, err := tracker.Watch(context.Background(), jobID, func(job domain.Job) {
			logger.Debug("job progress",
				slog.String("job_id", job.JobID),
				slog.String("phase", job.Phase),
				slog.Float64("overall", jobs.Progress(job)))
		})
		if err != nil {
			fmt.Printf("\nepisode job %s: %s\n> ", jobID, userMessage(err))
			return
		}
		resolver.Observe(final)
		tracker.Forget(jobID)
		switch final.Status {
		case domain.JobStatusCompleted:
			fmt.Printf("\nepisode ready: %s\n> ", final.ArtifactID)
		case domain.JobStatusCancelled:
			fmt.Printf("\nepisode job %s cancelled\n> ", jobID)
		default:
			fmt.Printf("\nepisode job %s failed: %s\n> ", jobID, final.ErrorMessage)
		}
	}()
}

func printLastAssistant(session *chat.Session) {
	msgs := session.Messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == domain.RoleAssistant {
			fmt.Println(msgs[i].Content)
			for _, tc := range msgs[i].ToolCalls {
				fmt.Printf("  [used %s]\n", tc.ToolName)
			}
			return
		}
	}
}

// userMessage prefers the friendly text carried by turn errors.
func userMessage(err error) string {
	var te *domain.TurnError
	if errors.As(err, &te) {
		return te.UserMessage()
	}
	return err.Error()
}
