package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"basey-transport/internal/api"
	"basey-transport/internal/auth"
	"basey-transport/internal/config"
	"basey-transport/internal/db"
	"basey-transport/internal/distance"
	"basey-transport/internal/fare"
	"basey-transport/internal/history"
	"basey-transport/internal/location"
	"basey-transport/internal/models"
	"basey-transport/internal/parser"
	"basey-transport/internal/penalty"
	"basey-transport/internal/ticket"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	configPath string
	dbPath     string
	cfg        *config.Config
	database   *db.Database
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "basey-transport",
		Short: "Basey Transport - fare estimation and violation penalties",
		Long: `Fare estimation for tricycle and habal-habal trips within Basey, Samar,
and escalating penalties for public transport violations, with SQLite
records storage and REST API access.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load(configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("db") {
				cfg.Database.Path = dbPath
			}
			slog.SetDefault(newLogger(cfg.Log))
			return nil
		},
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to TOML config file")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "basey_transport.db", "Path to SQLite database")

	// Add commands
	rootCmd.AddCommand(serverCmd())
	rootCmd.AddCommand(estimateCmd())
	rootCmd.AddCommand(fareCmd())
	rootCmd.AddCommand(placesCmd())
	rootCmd.AddCommand(penaltyCmd())
	rootCmd.AddCommand(ticketCmd())
	rootCmd.AddCommand(vehicleCmd())
	rootCmd.AddCommand(violationCmd())
	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(tokenCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger(c config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// initDB initializes database connection
func initDB() error {
	var err error
	database, err = db.New(cfg.Database.Path)
	return err
}

// loadPlaces returns the configured place table, or the built-in one
func loadPlaces() (*location.Registry, error) {
	if cfg.Locations.File == "" {
		return location.Default(), nil
	}
	places, err := parser.ParsePlaces(cfg.Locations.File)
	if err != nil {
		return nil, err
	}
	return location.NewRegistry(places)
}

// historySource reads the local store, merged with the remote history
// service when one is configured. Tickets are recorded locally, so the local
// store must stay in the lookup for them to count.
func historySource() penalty.HistorySource {
	if cfg.History.URL != "" {
		return history.Combine(history.NewClient(cfg.History.URL, cfg.History.TimeoutDuration()), database)
	}
	return database
}

func newEscalator() (*penalty.Escalator, error) {
	return penalty.NewEscalator(cfg.Penalty.Tiers, penalty.WithLogger(slog.Default()))
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// serverCmd starts the REST API server
func serverCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Start the REST API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}

			places, err := loadPlaces()
			if err != nil {
				return fmt.Errorf("locations error: %w", err)
			}
			if err := initDB(); err != nil {
				return fmt.Errorf("database error: %w", err)
			}
			defer database.Close()

			var signer *auth.Signer
			if cfg.Auth.JWTSecret != "" {
				signer = auth.NewSigner(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
			}

			server, err := api.NewServer(database, api.Options{
				Places:         places,
				Rates:          cfg.Fare,
				Tiers:          cfg.Penalty.Tiers,
				History:        historySource(),
				HistoryTimeout: cfg.History.TimeoutDuration(),
				Signer:         signer,
				Logger:         slog.Default(),
			})
			if err != nil {
				return err
			}

			httpServer := &http.Server{
				Addr:         cfg.Server.Addr(),
				Handler:      server.Router(),
				ReadTimeout:  cfg.Server.ReadTimeoutDuration(),
				WriteTimeout: cfg.Server.WriteTimeoutDuration(),
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			g, gctx := errgroup.WithContext(ctx)

			g.Go(func() error {
				slog.Info("listening",
					"addr", httpServer.Addr,
					"database", cfg.Database.Path,
					"places", places.Len(),
					"remote_history", cfg.History.URL != "",
					"auth", signer != nil,
				)
				if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeoutDuration())
				defer cancel()
				slog.Info("shutting down")
				return httpServer.Shutdown(shutdownCtx)
			})

			return g.Wait()
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8080, "Server port")
	return cmd
}

// estimateCmd estimates distance and fare between two places
func estimateCmd() *cobra.Command {
	var outputFormat string

	cmd := &cobra.Command{
		Use:   "estimate [from] [to]",
		Short: "Estimate distance and fare between two places",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if args[0] == args[1] {
				return errors.New("origin and destination must be different")
			}
			places, err := loadPlaces()
			if err != nil {
				return fmt.Errorf("locations error: %w", err)
			}

			est, err := distance.NewEstimator(places, nil).Estimate(args[0], args[1])
			if err != nil {
				return err
			}
			breakdown, err := fare.NewEngine(cfg.Fare).Compute(est.Kilometers)
			if err != nil {
				return err
			}

			if outputFormat == "json" {
				return printJSON(map[string]interface{}{"estimate": est, "fare": breakdown})
			}
			fmt.Printf("%s -> %s\n", est.FromPlace, est.ToPlace)
			fmt.Printf("  Straight line:  %.2f km\n", est.GreatCircleKM)
			fmt.Printf("  Road estimate:  %.2f km\n", est.Kilometers)
			printFare(breakdown)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "output", "o", "table", "Output format (table, json)")
	return cmd
}

func printFare(b models.FareBreakdown) {
	fmt.Printf("  Base fare:      PHP %.2f\n", b.BaseFare)
	if b.AdditionalDistanceKM > 0 {
		fmt.Printf("  Additional:     PHP %.2f (%.2f km)\n", b.AdditionalFare, b.AdditionalDistanceKM)
	}
	fmt.Printf("  Total fare:     PHP %.2f\n", b.TotalFare)
}

// fareCmd computes the fare for a known distance
func fareCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fare [km]",
		Short: "Compute the fare for a distance in kilometers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			km, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return fmt.Errorf("invalid distance %q: %w", args[0], err)
			}
			breakdown, err := fare.NewEngine(cfg.Fare).Compute(km)
			if err != nil {
				return err
			}
			fmt.Printf("Fare for %.2f km\n", km)
			printFare(breakdown)
			return nil
		},
	}
}

// placesCmd lists the known places
func placesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "places",
		Short: "List known places",
		RunE: func(cmd *cobra.Command, args []string) error {
			places, err := loadPlaces()
			if err != nil {
				return fmt.Errorf("locations error: %w", err)
			}

			fmt.Printf("%-50s %-10s %10s %11s\n", "Name", "Class", "Lat", "Lon")
			fmt.Println(strings.Repeat("-", 84))
			for _, p := range places.Places() {
				fmt.Printf("%-50s %-10s %10.4f %11.4f\n", p.Name, p.Classification, p.Latitude, p.Longitude)
			}
			return nil
		},
	}
}

// penaltyCmd computes the penalty for a plate's next offense
func penaltyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "penalty [plate_number]",
		Short: "Compute the penalty for a plate's next offense",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := initDB(); err != nil {
				return fmt.Errorf("database error: %w", err)
			}
			defer database.Close()

			e, err := newEscalator()
			if err != nil {
				return err
			}
			d, _ := e.DecideFor(cmd.Context(), args[0], historySource(), cfg.History.TimeoutDuration())

			fmt.Printf("Plate:    %s\n", d.PlateNumber)
			fmt.Printf("Offense:  #%d\n", d.OffenseOrdinal)
			fmt.Printf("Penalty:  PHP %.2f\n", d.PenaltyAmount)
			if d.HistoryUnavailable {
				fmt.Printf("Warning:  %s\n", d.Warning)
			}
			return nil
		},
	}
}

// ticketCmd issues a violation ticket
func ticketCmd() *cobra.Command {
	var where string

	cmd := &cobra.Command{
		Use:   "ticket [plate_number] [violation_type]",
		Short: "Issue a violation ticket and record it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := initDB(); err != nil {
				return fmt.Errorf("database error: %w", err)
			}
			defer database.Close()

			e, err := newEscalator()
			if err != nil {
				return err
			}
			iss := ticket.NewIssuer(e, historySource(), database, cfg.History.TimeoutDuration())

			t, err := iss.Issue(cmd.Context(), ticket.Request{
				PlateNumber:   args[0],
				ViolationType: args[1],
				Location:      where,
			})
			if err != nil {
				return err
			}

			fmt.Printf("✓ Ticket %s issued\n", t.TicketNumber)
			fmt.Printf("  Plate:    %s\n", t.PlateNumber)
			fmt.Printf("  Offense:  #%d (%s)\n", t.Decision.OffenseOrdinal, t.ViolationType)
			fmt.Printf("  Penalty:  PHP %.2f\n", t.Decision.PenaltyAmount)
			if t.Decision.HistoryUnavailable {
				fmt.Printf("  ⚠️  %s\n", t.Decision.Warning)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&where, "location", "l", "", "Where the violation happened")
	return cmd
}

// vehicleCmd manages vehicles
func vehicleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vehicle",
		Short: "Vehicle management commands",
	}

	// List subcommand
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List all vehicles",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := initDB(); err != nil {
				return fmt.Errorf("database error: %w", err)
			}
			defer database.Close()

			vehicles, err := database.ListVehicles()
			if err != nil {
				return fmt.Errorf("error listing vehicles: %w", err)
			}

			if len(vehicles) == 0 {
				fmt.Println("No vehicles found. Use 'basey-transport vehicle add' to register one.")
				return nil
			}

			fmt.Printf("%-12s %-28s %-12s\n", "Plate", "Operator", "Type")
			fmt.Println(strings.Repeat("-", 54))
			for _, v := range vehicles {
				fmt.Printf("%-12s %-28s %-12s\n", v.PlateNumber, v.OperatorName, v.VehicleType)
			}
			return nil
		},
	}

	// Add subcommand
	var operator, vehicleType string
	addCmd := &cobra.Command{
		Use:   "add [plate_number]",
		Short: "Register a vehicle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := initDB(); err != nil {
				return fmt.Errorf("database error: %w", err)
			}
			defer database.Close()

			v := models.Vehicle{
				PlateNumber:  penalty.NormalizePlate(args[0]),
				OperatorName: operator,
				VehicleType:  vehicleType,
			}
			if err := database.InsertVehicle(&v); err != nil {
				return fmt.Errorf("error adding vehicle: %w", err)
			}
			fmt.Printf("✓ Registered %s\n", v.PlateNumber)
			return nil
		},
	}
	addCmd.Flags().StringVar(&operator, "operator", "", "Operator name")
	addCmd.Flags().StringVar(&vehicleType, "type", "tricycle", "Vehicle type")

	cmd.AddCommand(listCmd, addCmd)
	return cmd
}

// violationCmd queries recorded violations
func violationCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "violation",
		Short: "Violation record commands",
	}

	var plate, violationType, startTime, endTime, outputFormat string
	var limit int

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "Query recorded violations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := initDB(); err != nil {
				return fmt.Errorf("database error: %w", err)
			}
			defer database.Close()

			q := models.ViolationQuery{
				PlateNumber:   penalty.NormalizePlate(plate),
				ViolationType: violationType,
				Limit:         limit,
			}
			if startTime != "" {
				t, err := parser.ParseTimestamp(startTime)
				if err != nil {
					return fmt.Errorf("invalid start time: %w", err)
				}
				q.StartTime = t
			}
			if endTime != "" {
				t, err := parser.ParseTimestamp(endTime)
				if err != nil {
					return fmt.Errorf("invalid end time: %w", err)
				}
				q.EndTime = t
			}

			start := time.Now()
			results, err := database.QueryViolations(cmd.Context(), q)
			if err != nil {
				return fmt.Errorf("query error: %w", err)
			}
			elapsed := time.Since(start)

			if outputFormat == "json" {
				return printJSON(results)
			}
			fmt.Printf("Found %d violations (query time: %v)\n\n", len(results), elapsed)
			for _, r := range results {
				fmt.Printf("[%s] %-10s %-24s PHP %8.2f  %s\n",
					r.ViolationDate.Format("2006-01-02 15:04"),
					r.PlateNumber, r.ViolationType, r.PenaltyAmount, r.TicketNumber)
			}
			return nil
		},
	}

	listCmd.Flags().StringVarP(&plate, "plate", "P", "", "Filter by plate number")
	listCmd.Flags().StringVarP(&violationType, "type", "t", "", "Filter by violation type")
	listCmd.Flags().StringVarP(&startTime, "start", "s", "", "Start time")
	listCmd.Flags().StringVarP(&endTime, "end", "e", "", "End time")
	listCmd.Flags().IntVarP(&limit, "limit", "l", 100, "Maximum records to return")
	listCmd.Flags().StringVarP(&outputFormat, "output", "o", "table", "Output format (table, json)")

	cmd.AddCommand(listCmd)
	return cmd
}

// importCmd imports historical violations from files
func importCmd() *cobra.Command {
	var format string
	var validate bool

	cmd := &cobra.Command{
		Use:   "import [file...]",
		Short: "Import historical violation records from files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := initDB(); err != nil {
				return fmt.Errorf("database error: %w", err)
			}
			defer database.Close()

			p := parser.NewParser(format)
			totalRecords := 0
			totalErrors := 0

			for _, file := range args {
				fmt.Printf("Processing %s...\n", file)
				start := time.Now()

				records, err := p.ParseFile(file)
				if err != nil {
					fmt.Printf("  Error: %v\n", err)
					totalErrors++
					continue
				}

				if validate {
					var valid []models.ViolationRecord
					for _, r := range records {
						if errs := parser.ValidateViolation(&r); len(errs) == 0 {
							valid = append(valid, r)
						} else {
							slog.Warn("skipping invalid record", "file", file, "plate_number", r.PlateNumber, "errors", errs)
							totalErrors++
						}
					}
					records = valid
				}

				count, err := database.InsertViolationBatch(cmd.Context(), records)
				if err != nil {
					fmt.Printf("  Database error: %v\n", err)
					continue
				}

				elapsed := time.Since(start)
				fmt.Printf("  ✓ Imported %d records in %v\n", count, elapsed)
				totalRecords += int(count)
			}

			fmt.Printf("\nTotal: %d records imported", totalRecords)
			if totalErrors > 0 {
				fmt.Printf(", %d errors", totalErrors)
			}
			fmt.Println()
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "csv", "File format (csv, json, log)")
	cmd.Flags().BoolVarP(&validate, "validate", "v", true, "Validate records before inserting")
	return cmd
}

// statsCmd shows database statistics
func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show database statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := initDB(); err != nil {
				return fmt.Errorf("database error: %w", err)
			}
			defer database.Close()

			stats, err := database.GetStats()
			if err != nil {
				return fmt.Errorf("error getting stats: %w", err)
			}

			fmt.Println("📊 Basey Transport Statistics")
			fmt.Println("=============================")
			fmt.Printf("  Vehicles:          %d\n", stats.TotalVehicles)
			fmt.Printf("  Violations:        %d\n", stats.TotalViolations)
			fmt.Printf("  Repeat Offenders:  %d\n", stats.RepeatOffenders)
			fmt.Printf("  Penalties Issued:  PHP %.2f\n", stats.TotalPenalties)
			fmt.Printf("  Database:          %s\n", cfg.Database.Path)
			return nil
		},
	}
}

// tokenCmd mints an operator token for the configured secret
func tokenCmd() *cobra.Command {
	var subject, role string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an operator bearer token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.Auth.JWTSecret == "" {
				return errors.New("no jwt_secret configured (set [auth] jwt_secret or BASEY_JWT_SECRET)")
			}
			if role != auth.RoleEnforcer && role != auth.RoleAdmin {
				return fmt.Errorf("role must be %q or %q", auth.RoleEnforcer, auth.RoleAdmin)
			}

			signer := auth.NewSigner(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
			tok, err := signer.Sign(subject, role, cfg.Auth.TokenTTLDuration())
			if err != nil {
				return err
			}
			fmt.Println(tok)
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "enforcer", "Token subject (operator ID)")
	cmd.Flags().StringVar(&role, "role", auth.RoleEnforcer, "Token role (enforcer, admin)")
	return cmd
}
