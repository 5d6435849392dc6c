// Package archive keeps a sqlite record of every completed sweep: the run
// settings, the raw measurement matrix and the artifact paths written for it.
package archive

import (
	"compress/gzip"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/tailscale/tailsql/server/tailsql"
	_ "modernc.org/sqlite"
	"tailscale.com/tsweb"

	"github.com/banshee-data/antenna.report/internal/config"
	"github.com/banshee-data/antenna.report/internal/sweep"
)

// ErrRunNotFound is returned when a run ID has no row in the archive.
var ErrRunNotFound = errors.New("run not found")

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA foreign_keys=ON",
}

// Archive is an open run database. The embedded *sql.DB is exposed for
// ad hoc queries.
type Archive struct {
	*sql.DB
	path string
}

// Open opens (creating if needed) the archive at path and applies any
// pending migrations.
func Open(path string) (*Archive, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	a := &Archive{DB: db, path: path}
	if err := a.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return a, nil
}

// Run is the summary row of one sweep.
type Run struct {
	ID          string                 `json:"run_id"`
	Label       string                 `json:"label"`
	Device      string                 `json:"device"`
	StartedAt   time.Time              `json:"started_at"`
	CompletedAt time.Time              `json:"completed_at"`
	Window      config.FrequencyWindow `json:"-"`
	StimulusDBm int                    `json:"stimulus_dbm"`
	IFBandwidth int                    `json:"if_bandwidth_hz"`
	Average     int                    `json:"average_count"`
	Points      int                    `json:"points"`
	MotorID     int                    `json:"motor_id"`
	StepsPerRev int64                  `json:"steps_per_rev"`
	NAngles     int                    `json:"n_angles"`
	CSVPath     string                 `json:"csv_path"`
}

// RunFromConfig fills the settings columns of a run from cfg.
func RunFromConfig(cfg *config.Config) Run {
	return Run{
		Window:      cfg.Window,
		StimulusDBm: cfg.StimulusDBm,
		IFBandwidth: cfg.IFBandwidthHz,
		Average:     cfg.AverageCount,
		Points:      cfg.Points,
		MotorID:     cfg.MotorID,
		StepsPerRev: cfg.StepsPerRev,
		NAngles:     cfg.NAngles,
	}
}

func (r *Run) String() string {
	return fmt.Sprintf("Run %s: %s, %d angles x %d points, %s",
		r.ID, r.Window, r.NAngles, r.Points, r.CompletedAt.Format(time.RFC3339))
}

// Record stores run, every cell of m and the artifact files in one
// transaction. targets holds the motor target of each row and freqs the
// frequency of each column. A run without an ID gets a fresh UUID, which is
// returned.
func (a *Archive) Record(ctx context.Context, run Run, m *sweep.Matrix, targets []int64, freqs []float64, files []string) (string, error) {
	angles, points := m.Dims()
	if len(targets) != angles {
		return "", fmt.Errorf("have %d targets for %d angles", len(targets), angles)
	}
	if len(freqs) != points {
		return "", fmt.Errorf("have %d frequencies for %d points", len(freqs), points)
	}
	if run.ID == "" {
		run.ID = uuid.New().String()
	}

	tx, err := a.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT INTO runs (
			run_id, label, device, started_unix, completed_unix, window_kind,
			center_hz, start_hz, stop_hz, stimulus_dbm, if_bandwidth_hz,
			average_count, points, motor_id, steps_per_rev, n_angles, csv_path
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Label, run.Device, unixSeconds(run.StartedAt), unixSeconds(run.CompletedAt),
		run.Window.Kind.String(), run.Window.Center, run.Window.Start, run.Window.Stop,
		run.StimulusDBm, run.IFBandwidth, run.Average, points, run.MotorID,
		run.StepsPerRev, angles, run.CSVPath,
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO measurements (
			run_id, angle_index, target_steps, point_index, frequency_hz, re, im
		) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", err
	}
	defer stmt.Close()

	for i := 0; i < angles; i++ {
		for j := 0; j < points; j++ {
			v := m.At(i, j)
			if _, err := stmt.ExecContext(ctx, run.ID, i, targets[i], j, freqs[j], real(v), imag(v)); err != nil {
				return "", fmt.Errorf("failed to insert measurement %d,%d: %w", i, j, err)
			}
		}
	}

	for _, f := range files {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO artifacts (run_id, path) VALUES (?, ?)`, run.ID, f); err != nil {
			return "", fmt.Errorf("failed to insert artifact %s: %w", f, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	log.Printf("[archive] recorded run %s (%d x %d)", run.ID, angles, points)
	return run.ID, nil
}

// Runs returns the most recent runs, newest first.
func (a *Archive) Runs(ctx context.Context, limit int) ([]Run, error) {
	rows, err := a.QueryContext(ctx, `SELECT run_id, label, device, started_unix, completed_unix,
			window_kind, center_hz, start_hz, stop_hz, stimulus_dbm, if_bandwidth_hz,
			average_count, points, motor_id, steps_per_rev, n_angles, csv_path
		FROM runs ORDER BY started_unix DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return runs, nil
}

// GetRun returns the run with the given ID.
func (a *Archive) GetRun(ctx context.Context, id string) (*Run, error) {
	row := a.QueryRowContext(ctx, `SELECT run_id, label, device, started_unix, completed_unix,
			window_kind, center_hz, start_hz, stop_hz, stimulus_dbm, if_bandwidth_hz,
			average_count, points, motor_id, steps_per_rev, n_angles, csv_path
		FROM runs WHERE run_id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return r, err
}

// Matrix rebuilds the measurement matrix of a run.
func (a *Archive) Matrix(ctx context.Context, id string) (*sweep.Matrix, error) {
	run, err := a.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}

	rows, err := a.QueryContext(ctx, `SELECT angle_index, point_index, re, im
		FROM measurements WHERE run_id = ?`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if run.NAngles < 1 || run.Points < 1 {
		return nil, fmt.Errorf("run %s: empty matrix %dx%d", id, run.NAngles, run.Points)
	}
	m := sweep.NewMatrix(run.NAngles, run.Points)
	cells := 0
	for rows.Next() {
		var i, j int
		var re, im float64
		if err := rows.Scan(&i, &j, &re, &im); err != nil {
			return nil, err
		}
		if i < 0 || i >= run.NAngles || j < 0 || j >= run.Points {
			return nil, fmt.Errorf("run %s: measurement %d,%d outside %dx%d", id, i, j, run.NAngles, run.Points)
		}
		m.Set(i, j, complex(re, im))
		cells++
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if cells != run.NAngles*run.Points {
		return nil, fmt.Errorf("run %s: have %d of %d measurements", id, cells, run.NAngles*run.Points)
	}
	return m, nil
}

// Artifacts returns the files recorded for a run, sorted by path.
func (a *Archive) Artifacts(ctx context.Context, id string) ([]string, error) {
	rows, err := a.QueryContext(ctx, `SELECT path FROM artifacts WHERE run_id = ? ORDER BY path`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*Run, error) {
	var (
		r                 Run
		started, complete float64
		kind              string
	)
	if err := s.Scan(
		&r.ID, &r.Label, &r.Device, &started, &complete,
		&kind, &r.Window.Center, &r.Window.Start, &r.Window.Stop,
		&r.StimulusDBm, &r.IFBandwidth, &r.Average, &r.Points,
		&r.MotorID, &r.StepsPerRev, &r.NAngles, &r.CSVPath,
	); err != nil {
		return nil, err
	}
	if kind == config.WindowStartStop.String() {
		r.Window.Kind = config.WindowStartStop
	} else {
		r.Window.Kind = config.WindowCenter
	}
	r.StartedAt = fromUnixSeconds(started)
	r.CompletedAt = fromUnixSeconds(complete)
	return &r, nil
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func fromUnixSeconds(s float64) time.Time {
	return time.Unix(0, int64(s*1e9)).UTC()
}

// AttachAdminRoutes mounts live SQL and a backup download under /debug/.
func (a *Archive) AttachAdminRoutes(mux *http.ServeMux) error {
	debug := tsweb.Debugger(mux)
	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		return fmt.Errorf("failed to create tailsql server: %w", err)
	}
	tsql.SetDB("sqlite://"+filepath.Base(a.path), a.DB, &tailsql.DBOptions{
		Label: "Antenna runs",
	})
	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())
	debug.Handle("backup", "Create and download a backup of the run archive now", http.HandlerFunc(a.serveBackup))
	return nil
}

func (a *Archive) serveBackup(w http.ResponseWriter, r *http.Request) {
	backupPath := filepath.Join(os.TempDir(), fmt.Sprintf("antenna-backup-%d.db", time.Now().UnixNano()))
	if _, err := a.ExecContext(r.Context(), "VACUUM INTO ?", backupPath); err != nil {
		http.Error(w, fmt.Sprintf("Failed to create backup: %v", err), http.StatusInternalServerError)
		return
	}
	defer func() {
		if err := os.Remove(backupPath); err != nil {
			log.Printf("Failed to remove backup file: %v", err)
		}
	}()

	backupFile, err := os.Open(backupPath)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to open backup file: %v", err), http.StatusInternalServerError)
		return
	}
	defer backupFile.Close()

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filepath.Base(backupPath)))
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Encoding", "gzip")

	gz := gzip.NewWriter(w)
	defer gz.Close()
	if _, err := io.Copy(gz, backupFile); err != nil {
		log.Printf("[archive] backup copy failed: %v", err)
	}
}
