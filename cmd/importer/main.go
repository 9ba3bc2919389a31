// Importer loads users from a delimited file (or stdin) into the registry, reports skipped
// lines, and optionally verifies a credential or issues an access code afterwards.
//
//	importer -file users.csv [-summary] [-verify-login L -verify-password P] [-issue-code L]
//
// Configuration comes from the environment (see internal/config).
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"identity-registry/internal/accesscode"
	"identity-registry/internal/accesscode/sms"
	"identity-registry/internal/audit"
	auditrepo "identity-registry/internal/audit/repository"
	"identity-registry/internal/config"
	"identity-registry/internal/logging"
	"identity-registry/internal/registry/service"
	"identity-registry/internal/telemetry"
	"identity-registry/internal/telemetry/otel"
	"identity-registry/internal/telemetry/producer"
	userrepo "identity-registry/internal/user/repository"
)

const maxLineBytes = 1 << 20

func main() {
	var (
		file           = flag.String("file", "", "import file; reads stdin when empty")
		summary        = flag.Bool("summary", false, "print the profile summary of every imported user")
		verifyLogin    = flag.String("verify-login", "", "login to authenticate after import")
		verifyPassword = flag.String("verify-password", "", "password for -verify-login")
		issueCode      = flag.String("issue-code", "", "login to issue a fresh access code for after import")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logging.New(os.Stderr, cfg.IsDevelopment(), cfg.Level())

	if err := run(cfg, log, *file, *summary, *verifyLogin, *verifyPassword, *issueCode); err != nil {
		log.Error().Err(err).Msg("importer failed")
		os.Exit(1)
	}
}

func run(cfg *config.Config, log zerolog.Logger, file string, summary bool, verifyLogin, verifyPassword, issueCode string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := otel.NewProviders(ctx, cfg.OTelEndpoint, cfg.OTelServiceName, cfg.OTelInsecure)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	providers.SetGlobal()
	metrics, err := otel.NewMetrics(providers.MeterProvider)
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	emitters := telemetry.MultiEmitter{otel.NewEventEmitter(providers.LoggerProvider)}
	kafkaProducer := producer.NewKafkaProducer(cfg.KafkaBrokersList(), cfg.EventsTopic)
	if kafkaProducer != nil {
		emitters = append(emitters, kafkaProducer)
		log.Info().Strs("brokers", cfg.KafkaBrokersList()).Str("topic", cfg.EventsTopic).Msg("publishing registry events")
	}
	defer func() {
		if cfg.OTelEndpoint != "" || kafkaProducer != nil {
			time.Sleep(telemetry.ShutdownDrainDuration)
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := kafkaProducer.Close(); err != nil {
			log.Warn().Err(err).Msg("kafka producer close")
		}
		if err := providers.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("telemetry shutdown")
		}
	}()

	senders := accesscode.MultiSender{accesscode.NewLogSender(log, cfg.DevAccessCodes)}
	if cfg.SMSLocalAPIKey != "" {
		senders = append(senders, sms.NewSMSLocalClient(cfg.SMSLocalAPIKey, cfg.SMSLocalBaseURL, cfg.SMSLocalSender))
	}
	var devCodes *accesscode.MemoryStore
	if cfg.DevAccessCodes {
		devCodes = accesscode.NewMemoryStore(cfg.AccessCodeTTLDuration())
		senders = append(senders, devCodes)
	}

	auditRepo := auditrepo.NewMemoryRepository()
	registry := service.NewRegistryService(userrepo.NewMemoryRepository(), log, service.Options{
		Sender:      senders,
		AuditLogger: audit.NewLogger(auditRepo, log),
		Events:      emitters,
		Metrics:     metrics,
		Delimiter:   cfg.ImportDelimiter,
	})

	lines, err := readLines(file)
	if err != nil {
		return err
	}
	report := registry.ImportBatch(ctx, lines)
	for _, skipped := range report.Skipped {
		fmt.Fprintf(os.Stderr, "line %d: %s\n", skipped.Number, skipped)
	}
	fmt.Printf("imported %d, skipped %d\n", len(report.Users), len(report.Skipped))
	if summary {
		for _, u := range report.Users {
			fmt.Printf("\n%s\n", u.ProfileSummary())
		}
	}

	if verifyLogin != "" {
		profile, err := registry.Login(ctx, verifyLogin, verifyPassword)
		switch {
		case errors.Is(err, service.ErrAuthenticationFailure):
			fmt.Printf("verify %s: denied\n", verifyLogin)
		case err != nil:
			return err
		default:
			fmt.Printf("verify %s: ok\n%s\n", verifyLogin, profile)
		}
	}

	if issueCode != "" {
		if err := registry.RequestAccessCode(ctx, issueCode); err != nil {
			return fmt.Errorf("issue code for %s: %w", issueCode, err)
		}
		if devCodes != nil {
			if code, ok := devCodes.Get(ctx, issueCode); ok {
				fmt.Printf("access code for %s: %s\n", issueCode, code)
			}
		}
	}

	entries, _ := auditRepo.List(ctx, 0)
	log.Debug().Int("audit_entries", len(entries)).Msg("import session audited")
	return nil
}

func readLines(file string) ([]string, error) {
	var r io.Reader = os.Stdin
	if file != "" {
		f, err := os.Open(file)
		if err != nil {
			return nil, fmt.Errorf("open import file: %w", err)
		}
		defer f.Close()
		r = f
	}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read import lines: %w", err)
	}
	return lines, nil
}
