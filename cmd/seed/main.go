package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-availability/internal/auth"
	"github.com/hackgods/clinic-availability/internal/availability"
	"github.com/hackgods/clinic-availability/internal/bootstrap"
	"github.com/hackgods/clinic-availability/internal/config"
	"github.com/hackgods/clinic-availability/internal/logging"
)

var specialties = []string{
	"Dermatology",
	"Cardiology",
	"General Practice",
	"Orthopedics",
	"Endocrinology",
	"Neurology",
	"Pediatrics",
	"Psychiatry",
	"Ophthalmology",
	"ENT",
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		_, _ = os.Stderr.WriteString("config load error: " + err.Error() + "\n")
		os.Exit(1)
	}
	if cfg.StoreBackend == config.BackendMemory {
		_, _ = os.Stderr.WriteString("seed needs STORE_BACKEND=postgres or firestore\n")
		os.Exit(1)
	}
	// seed only writes to the store
	cfg.AuthMode = config.AuthHeader
	cfg.PushEnabled = false
	cfg.FeedBackend = config.FeedMemory

	logger, err := logging.New(cfg.Env, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		_, _ = os.Stderr.WriteString("logger init error: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	doctors := getInt("SEED_DOCTORS", 20)
	patients := getInt("SEED_PATIENTS", 500)
	days := getInt("SEED_DAYS", 14)
	logger.Info("seed starting", zap.Int("doctors", doctors), zap.Int("patients", patients), zap.Int("days", days))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	deps, err := bootstrap.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("open backends", zap.Error(err))
	}
	defer deps.Close()

	_ = gofakeit.Seed(time.Now().UnixNano())

	mgr := availability.NewManager(deps.Directory, deps.Ledger, availability.WithLocation(cfg.Location), availability.WithLogger(logger))

	if err := seedDoctors(ctx, deps.Directory, mgr, doctors, days, cfg.Location, logger); err != nil {
		logger.Fatal("seed doctors", zap.Error(err))
	}
	if err := seedPatients(ctx, deps.Directory, patients, logger); err != nil {
		logger.Fatal("seed patients", zap.Error(err))
	}

	logger.Info("seed complete")
}

func seedDoctors(ctx context.Context, dir availability.Directory, mgr *availability.Manager, count, days int, loc *time.Location, logger *zap.Logger) error {
	today := time.Now().In(loc)

	for i := 0; i < count; i++ {
		spec := specialties[gofakeit.Number(0, len(specialties)-1)]
		license := gofakeit.Numerify("PWZ-#######")
		doc := availability.User{
			UID:            "doc-" + uuid.NewString(),
			Email:          gofakeit.Email(),
			FullName:       "Dr. " + gofakeit.Name(),
			Role:           auth.RoleDoctor,
			Specialization: &spec,
			LicenseNumber:  &license,
		}
		if err := dir.UpdateUser(ctx, doc); err != nil {
			return fmt.Errorf("create doctor: %w", err)
		}

		slots := 0
		for d := 1; d <= days; d++ {
			date := today.AddDate(0, 0, d)
			if date.Weekday() == time.Sunday {
				continue
			}
			for hour := 9; hour < 17; hour++ {
				if !gofakeit.Bool() {
					continue
				}
				if _, err := mgr.AddSlot(ctx, doc.UID, availability.Slot{
					Date:      date.Format("2006-01-02"),
					StartTime: clockLabel(hour),
					EndTime:   clockLabel(hour + 1),
				}); err != nil {
					return fmt.Errorf("add slot for %s: %w", doc.UID, err)
				}
				slots++
			}
		}
		logger.Info("doctor seeded", zap.String("uid", doc.UID), zap.String("specialization", spec), zap.Int("slots", slots))
	}
	return nil
}

func seedPatients(ctx context.Context, dir availability.Directory, count int, logger *zap.Logger) error {
	const reportEvery = 100

	for i := 0; i < count; i++ {
		phone := gofakeit.Phone()
		addr := gofakeit.Address().Address
		dob := gofakeit.DateRange(time.Date(1940, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2008, 1, 1, 0, 0, 0, 0, time.UTC)).Format("2006-01-02")
		p := availability.User{
			UID:         "pat-" + uuid.NewString(),
			Email:       gofakeit.Email(),
			FullName:    gofakeit.Name(),
			Role:        auth.RolePatient,
			Phone:       &phone,
			Address:     &addr,
			DateOfBirth: &dob,
		}
		if err := dir.UpdateUser(ctx, p); err != nil {
			return fmt.Errorf("create patient: %w", err)
		}
		if (i+1)%reportEvery == 0 || i+1 == count {
			logger.Info("patients seeded", zap.Int("done", i+1), zap.Int("total", count))
		}
	}
	return nil
}

// clockLabel mixes both stored time styles, "14" and "2pm".
func clockLabel(hour int) string {
	if gofakeit.Bool() {
		return strconv.Itoa(hour)
	}
	switch {
	case hour == 12:
		return "12pm"
	case hour > 12:
		return strconv.Itoa(hour-12) + "pm"
	default:
		return strconv.Itoa(hour) + "am"
	}
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
