// Package influx manages the InfluxDB client shared by the influx journey
// sink and the performance monitor. When the server cannot be reached,
// points go to a gzip line-protocol backup file instead.
package influx

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"github.com/rs/zerolog"

	"github.com/RogersSierra/extension/internal/model"
)

// PerformanceBucket receives core performance points.
const PerformanceBucket = "sierra_performance"

// retention applied to buckets created on first connect.
const retention = 60 * 60 * 24 * 90

// ErrNotConnected is returned by WritePoint before Connect.
var ErrNotConnected = errors.New("influx client not initialized and backup writer not available")

// Config holds the connection settings.
type Config struct {
	URL        string
	Token      string
	Org        string
	Buckets    []string
	BackupPath string
	BatchSize  uint
	// FlushInterval of the async writer.
	FlushInterval time.Duration
	PingTimeout   time.Duration
}

// Manager handles InfluxDB connections and writes.
type Manager struct {
	cfg    Config
	log    zerolog.Logger
	client influxdb2.Client

	mu      sync.Mutex
	writers map[string]influxdb2_api.WriteAPI
	valid   bool

	backupFile   *os.File
	backupWriter *gzip.Writer
}

// NewManager creates a new InfluxDB manager.
func NewManager(cfg Config, log zerolog.Logger) *Manager {
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 2500
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = time.Second
	}
	if cfg.PingTimeout <= 0 {
		cfg.PingTimeout = 5 * time.Second
	}
	return &Manager{
		cfg:     cfg,
		log:     log,
		writers: make(map[string]influxdb2_api.WriteAPI),
	}
}

// Connect pings the server and prepares one writer per bucket. An
// unreachable server switches the manager to the backup file.
func (m *Manager) Connect(ctx context.Context) error {
	m.client = influxdb2.NewClientWithOptions(
		m.cfg.URL,
		m.cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(m.cfg.BatchSize).
			SetFlushInterval(uint(m.cfg.FlushInterval.Milliseconds())),
	)

	pingCtx, cancel := context.WithTimeout(ctx, m.cfg.PingTimeout)
	running, err := m.client.Ping(pingCtx)
	cancel()

	if err != nil || !running {
		m.log.Warn().Err(err).Str("backupPath", m.cfg.BackupPath).
			Msg("InfluxDB unreachable, writing to backup file")
		return m.openBackup()
	}

	if err := m.setupOrganizationAndBuckets(ctx); err != nil {
		return err
	}
	m.createWriters()

	m.mu.Lock()
	m.valid = true
	m.mu.Unlock()
	m.log.Info().Str("url", m.cfg.URL).Msg("InfluxDB client initialized")
	return nil
}

func (m *Manager) openBackup() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.backupWriter != nil {
		return nil
	}
	if m.cfg.BackupPath == "" {
		return errors.New("influx unreachable and no backup path configured")
	}
	f, err := os.OpenFile(m.cfg.BackupPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("error creating backup file: %w", err)
	}
	m.backupFile = f
	m.backupWriter = gzip.NewWriter(f)
	return nil
}

func (m *Manager) setupOrganizationAndBuckets(ctx context.Context) error {
	orgs := m.client.OrganizationsAPI()
	org, err := orgs.FindOrganizationByName(ctx, m.cfg.Org)
	if err != nil {
		m.log.Info().Str("org", m.cfg.Org).Msg("Organization not found, creating")
		org, err = orgs.CreateOrganizationWithName(ctx, m.cfg.Org)
		if err != nil {
			return fmt.Errorf("create organization %s: %w", m.cfg.Org, err)
		}
	}

	buckets := m.client.BucketsAPI()
	for _, bucket := range m.cfg.Buckets {
		if _, err := buckets.FindBucketByName(ctx, bucket); err == nil {
			continue
		}
		m.log.Info().Str("bucket", bucket).Msg("Bucket not found, creating")
		rule := domain.RetentionRuleTypeExpire
		_, err = buckets.CreateBucketWithName(ctx, org, bucket, domain.RetentionRule{
			Type:         &rule,
			EverySeconds: retention,
		})
		if err != nil {
			return fmt.Errorf("create bucket %s: %w", bucket, err)
		}
	}
	return nil
}

func (m *Manager) createWriters() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, bucket := range m.cfg.Buckets {
		w := m.client.WriteAPI(m.cfg.Org, bucket)
		m.writers[bucket] = w

		go func(bucket string, errs <-chan error) {
			for err := range errs {
				m.log.Error().Err(err).Str("bucket", bucket).Msg("Error sending data to InfluxDB")
			}
		}(bucket, w.Errors())
	}
	m.log.Debug().Int("buckets", len(m.writers)).Msg("InfluxDB writers initialized")
}

// Valid reports whether points go to the server rather than the backup.
func (m *Manager) Valid() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.valid
}

// WritePoint writes a point to its bucket or to the backup file.
func (m *Manager) WritePoint(bucket string, point *influxdb2_write.Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.valid {
		w, ok := m.writers[bucket]
		if !ok {
			return fmt.Errorf("influxDB bucket '%s' not registered", bucket)
		}
		w.WritePoint(point)
		return nil
	}
	if m.backupWriter == nil {
		return ErrNotConnected
	}

	line := influxdb2_write.PointToLineProtocol(point, time.Nanosecond)
	if _, err := m.backupWriter.Write([]byte(line + "\n")); err != nil {
		return fmt.Errorf("error writing to InfluxDB backup file: %w", err)
	}
	return nil
}

// Flush forces pending writes out.
func (m *Manager) Flush() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range m.writers {
		w.Flush()
	}
	if m.backupWriter != nil {
		return m.backupWriter.Flush()
	}
	return nil
}

// Close flushes and releases the client and backup file.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range m.writers {
		w.Flush()
	}
	if m.client != nil {
		m.client.Close()
	}
	m.valid = false
	var errs []error
	if m.backupWriter != nil {
		errs = append(errs, m.backupWriter.Close(), m.backupFile.Close())
		m.backupWriter = nil
		m.backupFile = nil
	}
	return errors.Join(errs...)
}

// WritePerformance writes a monitor snapshot to PerformanceBucket.
func (m *Manager) WritePerformance(p *model.CorePerformance) error {
	return m.WritePoint(PerformanceBucket, PerformancePoint(p))
}
