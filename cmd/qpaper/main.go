package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/qpaper/internal/assemble"
	"github.com/pavelanni/qpaper/internal/blueprint"
	"github.com/pavelanni/qpaper/internal/docx"
	"github.com/pavelanni/qpaper/internal/handler"
	appI18n "github.com/pavelanni/qpaper/internal/i18n"
	"github.com/pavelanni/qpaper/internal/importer"
	"github.com/pavelanni/qpaper/internal/model"
	"github.com/pavelanni/qpaper/internal/paper"
	"github.com/pavelanni/qpaper/internal/store"
)

func main() {
	// A missing .env is fine; real environment variables still apply.
	_ = godotenv.Load()
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "qpaper",
		Short: "Exam question paper generator",
	}

	serve := serveCmd()
	root.AddCommand(serve, importCmd(), generateCmd(), exportCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func commonFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("db", "qpaper.db", "SQLite database path")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

func institutionFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("institution-name", "", "Institution name printed on papers")
	f.String("institution-status", "", "Institution status line, e.g. (An Autonomous Institution)")
	f.String("institution-address", "", "Institution address line")
}

func blueprintFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringSlice("blueprints", nil, "YAML files with extra blueprints (repeatable)")
	f.String("blueprint", blueprint.DefaultName, "Blueprint to draw with")
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE:  runServe,
	}
	commonFlags(cmd)
	institutionFlags(cmd)
	blueprintFlags(cmd)
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.StringP("lang", "l", "en", "Default UI language (en, hi)")
	f.String("base-path", "", "URL prefix for sub-path deployments (e.g. /cse)")
	f.Bool("secure-cookies", true, "Set Secure flag on session cookies")
	f.String("admin-password", "", "Initial admin password (or set QPAPER_ADMIN_PASSWORD)")
	return cmd
}

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import FILE...",
		Short: "Import .xlsx or .json question files into a subject's bank",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runImport,
	}
	commonFlags(cmd)
	f := cmd.Flags()
	f.String("subject-code", "", "Subject code (required)")
	f.String("subject-name", "", "Subject name, used when the subject is created")
	_ = cmd.MarkFlagRequired("subject-code")
	return cmd
}

func generateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Draw a paper and write it as .docx",
		RunE:  runGenerate,
	}
	commonFlags(cmd)
	institutionFlags(cmd)
	blueprintFlags(cmd)
	f := cmd.Flags()
	f.String("subject-code", "", "Subject code (required)")
	f.String("test", "Unit Test 1", "Test type; Unit Test N draws from CON")
	f.Uint64("seed", 0, "Draw seed (0 picks a fresh one)")
	f.StringSlice("department", nil, "Department(s)")
	f.StringSlice("year", nil, "Year(s)")
	f.String("semester", "", "Semester number")
	f.StringSlice("date", nil, "Exam date(s)")
	f.String("duration", "", "Duration in hours, e.g. 1.30")
	f.String("regulation", "", "Regulation year")
	f.StringP("output", "o", "", "Output path (default <code>_question_paper.docx)")
	_ = cmd.MarkFlagRequired("subject-code")
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a subject's question bank as JSON",
		RunE:  runExport,
	}
	commonFlags(cmd)
	f := cmd.Flags()
	f.String("subject-code", "", "Subject code (required)")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	_ = cmd.MarkFlagRequired("subject-code")
	return cmd
}

func setupLogging(v *viper.Viper) {
	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags, QPAPER_* environment and qpaper.yaml to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("QPAPER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("qpaper")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/qpaper")
	v.AddConfigPath("/etc/qpaper")
	v.AddConfigPath("/data")
	setupLogging(v)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		// Settings from the file may change the log level too.
		setupLogging(v)
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}
	return v
}

func openStore(v *viper.Viper) (*store.Store, error) {
	db, err := store.New(v.GetString("db"))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

func loadBlueprints(v *viper.Viper) (*blueprint.Registry, error) {
	reg := blueprint.NewRegistry()
	for _, path := range v.GetStringSlice("blueprints") {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open blueprints %s: %w", path, err)
		}
		bps, err := blueprint.Load(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("load blueprints %s: %w", path, err)
		}
		if err := reg.Add(bps...); err != nil {
			return nil, fmt.Errorf("register blueprints %s: %w", path, err)
		}
		slog.Info("loaded blueprints", "path", path, "count", len(bps))
	}
	return reg, nil
}

func institutionFromFlags(v *viper.Viper) model.Institution {
	return model.Institution{
		Name:    strings.TrimSpace(v.GetString("institution-name")),
		Status:  strings.TrimSpace(v.GetString("institution-status")),
		Address: strings.TrimSpace(v.GetString("institution-address")),
	}
}

// mergeInstitution overlays the non-empty fields of override on base.
func mergeInstitution(base, override model.Institution) model.Institution {
	if override.Name != "" {
		base.Name = override.Name
	}
	if override.Status != "" {
		base.Status = override.Status
	}
	if override.Address != "" {
		base.Address = override.Address
	}
	return base
}

func runServe(cmd *cobra.Command, _ []string) error {
	v := viperForCmd(cmd)

	db, err := openStore(v)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := seedAdmin(db, v.GetString("admin-password")); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}

	if inst := institutionFromFlags(v); inst != (model.Institution{}) {
		stored, err := db.GetInstitution()
		if err != nil {
			return fmt.Errorf("load institution: %w", err)
		}
		if err := db.SetInstitution(mergeInstitution(stored, inst)); err != nil {
			return fmt.Errorf("save institution: %w", err)
		}
	}

	registry, err := loadBlueprints(v)
	if err != nil {
		return err
	}

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	// Normalize base path.
	basePath := strings.TrimRight(v.GetString("base-path"), "/")
	if basePath != "" && !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}

	cfg := model.ServeConfig{
		BasePath:      basePath,
		SecureCookies: v.GetBool("secure-cookies"),
		Blueprint:     v.GetString("blueprint"),
	}
	h, err := handler.New(db, paper.NewService(db, registry, docx.Writer{}), cfg)
	if err != nil {
		return fmt.Errorf("create handler: %w", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware)

	if basePath != "" {
		r.Route(basePath, func(sub chi.Router) {
			sub.Use(h.BasePathMiddleware)
			h.Routes(sub)
		})
		r.Get(basePath, func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, basePath+"/", http.StatusMovedPermanently)
		})
	} else {
		r.Use(h.BasePathMiddleware)
		h.Routes(r)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go cleanupSessions(ctx, db)

	addr := v.GetString("addr")
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	slog.Info("starting server",
		"addr", addr,
		"lang", lang,
		"languages", appI18n.Languages(),
		"blueprints", registry.Names(),
		"base_path", basePath,
	)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func cleanupSessions(ctx context.Context, db *store.Store) {
	t := time.NewTicker(time.Hour)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := db.CleanupExpiredSessions()
			if err != nil {
				slog.Error("session cleanup failed", "error", err)
				continue
			}
			if n > 0 {
				slog.Info("removed expired sessions", "count", n)
			}
		}
	}
}

func runImport(cmd *cobra.Command, args []string) error {
	v := viperForCmd(cmd)
	ctx := cmd.Context()

	db, err := openStore(v)
	if err != nil {
		return err
	}
	defer db.Close()

	code := strings.ToUpper(strings.TrimSpace(v.GetString("subject-code")))
	subj, err := db.EnsureSubject(ctx, code, v.GetString("subject-name"))
	if err != nil {
		return fmt.Errorf("subject %s: %w", code, err)
	}

	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		hash := importer.Checksum(data)
		stored, err := db.GetImportedFileHash(ctx, subj.ID, path)
		if err != nil {
			return fmt.Errorf("check import status for %s: %w", path, err)
		}
		if stored == hash {
			slog.Info("questions file unchanged, skipping", "path", path)
			continue
		}
		if stored != "" {
			slog.Warn("questions file changed since last import, importing its questions again", "path", path)
		}

		rows, err := importer.Parse(path, bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		qs := make([]model.Question, len(rows))
		for i, qi := range rows {
			qs[i] = importer.ToQuestion(qi, subj.ID, 0)
		}
		if err := db.InsertQuestions(ctx, qs); err != nil {
			return fmt.Errorf("insert questions from %s: %w", path, err)
		}
		if err := db.SetImportedFileHash(ctx, subj.ID, path, hash); err != nil {
			return fmt.Errorf("record import for %s: %w", path, err)
		}
		slog.Info("imported questions", "subject", subj.Code, "path", path, "count", len(qs))
	}
	return nil
}

func runGenerate(cmd *cobra.Command, _ []string) error {
	v := viperForCmd(cmd)
	ctx := cmd.Context()

	db, err := openStore(v)
	if err != nil {
		return err
	}
	defer db.Close()

	registry, err := loadBlueprints(v)
	if err != nil {
		return err
	}

	code := strings.ToUpper(strings.TrimSpace(v.GetString("subject-code")))
	subj, err := db.SubjectByCode(ctx, code)
	if err != nil {
		return fmt.Errorf("find subject %s: %w", code, err)
	}
	if subj == nil {
		return fmt.Errorf("%w: no subject with code %s", paper.ErrNoSubject, code)
	}

	stored, err := db.GetInstitution()
	if err != nil {
		return fmt.Errorf("load institution: %w", err)
	}
	inst := mergeInstitution(stored, institutionFromFlags(v))

	meta := model.PaperMeta{
		Departments: v.GetStringSlice("department"),
		Years:       v.GetStringSlice("year"),
		Tests:       []string{v.GetString("test")},
		Duration:    v.GetString("duration"),
		Dates:       v.GetStringSlice("date"),
	}
	if s := v.GetString("semester"); s != "" {
		meta.Semesters = []string{s}
	}
	if r := v.GetString("regulation"); r != "" {
		meta.Regulations = []string{r}
	}

	// Render into memory so a failed draw leaves no partial file behind.
	var buf bytes.Buffer
	svc := paper.NewService(db, registry, docx.Writer{})
	sel, err := svc.Generate(ctx, &buf, paper.Request{
		SubjectID: subj.ID,
		Test:      v.GetString("test"),
		Blueprint: v.GetString("blueprint"),
		Seed:      v.GetUint64("seed"),
	}, meta, assemble.WithInstitution(inst))
	if err != nil {
		return err
	}

	out := v.GetString("output")
	if out == "" {
		out = assemble.Filename(subj.Code)
	}
	if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	slog.Info("paper written", "path", out, "subject", subj.Code, "seed", sel.Seed, "questions", len(sel.Entries))
	fmt.Fprintf(cmd.OutOrStdout(), "%s (seed %d)\n", out, sel.Seed)
	return nil
}

func runExport(cmd *cobra.Command, _ []string) error {
	v := viperForCmd(cmd)
	ctx := cmd.Context()

	db, err := openStore(v)
	if err != nil {
		return err
	}
	defer db.Close()

	code := strings.ToUpper(strings.TrimSpace(v.GetString("subject-code")))
	subj, err := db.SubjectByCode(ctx, code)
	if err != nil {
		return fmt.Errorf("find subject %s: %w", code, err)
	}
	if subj == nil {
		return fmt.Errorf("no subject with code %s", code)
	}
	bank, err := db.ExportBank(ctx, subj.ID)
	if err != nil {
		return fmt.Errorf("export bank: %w", err)
	}

	data, err := json.MarshalIndent(bank, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	outPath := v.GetString("output")
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = cmd.OutOrStdout()
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	_, _ = fmt.Fprintln(w)
	slog.Info("exported bank", "subject", subj.Code, "count", bank.Count)
	return nil
}

func seedAdmin(db *store.Store, password string) error {
	count, err := db.UserCount()
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	if password == "" {
		return fmt.Errorf("admin password is required: set --admin-password flag or QPAPER_ADMIN_PASSWORD env var")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	_, err = db.CreateUser(model.User{
		Username:     "admin",
		DisplayName:  "Administrator",
		PasswordHash: string(hash),
		Role:         model.UserRoleAdmin,
		Active:       true,
	})
	if err != nil {
		return fmt.Errorf("create admin user: %w", err)
	}

	slog.Info("seeded default admin user", "username", "admin")
	return nil
}
