// Package influx mirrors realization results into InfluxDB as time series,
// one point per compartment and time table date.
package influx

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"carboncore/pkg/domain"
)

var _ domain.ResultStore = (*Sink)(nil)

const (
	// MeasurementStock holds per-date compartment values.
	MeasurementStock = "carbon_compartment"
	// MeasurementIntegrated holds the rotation-averaged compartment value.
	MeasurementIntegrated = "carbon_integrated"

	defaultURL    = "http://localhost:8086"
	defaultOrg    = "carboncore"
	defaultBucket = "carbon"
)

// PointWriter is the subset of api.WriteAPIBlocking the sink uses.
type PointWriter interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

// Config holds connection parameters.
type Config struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

// ConfigFromEnv reads CARBONCORE_INFLUX_URL, _TOKEN, _ORG and _BUCKET.
func ConfigFromEnv() Config {
	return Config{
		URL:    os.Getenv("CARBONCORE_INFLUX_URL"),
		Token:  os.Getenv("CARBONCORE_INFLUX_TOKEN"),
		Org:    os.Getenv("CARBONCORE_INFLUX_ORG"),
		Bucket: os.Getenv("CARBONCORE_INFLUX_BUCKET"),
	}
}

// Sink is a write-only domain.ResultStore.
type Sink struct {
	writer PointWriter
	close  func()
	epoch  time.Time
}

// New connects to InfluxDB with blocking writes.
func New(cfg Config) *Sink {
	if cfg.URL == "" {
		cfg.URL = defaultURL
	}
	if cfg.Org == "" {
		cfg.Org = defaultOrg
	}
	if cfg.Bucket == "" {
		cfg.Bucket = defaultBucket
	}
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	return &Sink{writer: client.WriteAPIBlocking(cfg.Org, cfg.Bucket), close: client.Close}
}

// NewWithWriter wraps an existing writer.
func NewWithWriter(w PointWriter) *Sink {
	return &Sink{writer: w, close: func() {}}
}

// Points converts a result into line protocol points. Dates are years and map
// to January 1st of that year.
func Points(result domain.RealizationResult) []*write.Point {
	kinds := make([]domain.CompartmentKind, 0, len(result.Compartments))
	for k := range result.Compartments {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })

	realization := strconv.Itoa(result.Realization)
	var points []*write.Point
	for _, kind := range kinds {
		series := result.Compartments[kind]
		for i, v := range series.Values {
			if i >= len(result.Dates) {
				break
			}
			p := influxdb2.NewPointWithMeasurement(MeasurementStock).
				AddTag("run_id", result.RunID).
				AddTag("realization", realization).
				AddTag("compartment", string(kind)).
				AddField("carbon", v).
				SetTime(yearTime(result.Dates[i]))
			points = append(points, p)
		}
		p := influxdb2.NewPointWithMeasurement(MeasurementIntegrated).
			AddTag("run_id", result.RunID).
			AddTag("realization", realization).
			AddTag("compartment", string(kind)).
			AddField("carbon_per_year", series.Integrated).
			SetTime(resultTime(result))
		points = append(points, p)
	}
	return points
}

func yearTime(year int) time.Time { return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC) }

func resultTime(r domain.RealizationResult) time.Time {
	if r.CreatedAt.IsZero() {
		return time.Unix(0, 0).UTC()
	}
	return r.CreatedAt
}

// Save implements domain.ResultStore.
func (s *Sink) Save(ctx context.Context, result domain.RealizationResult) error {
	if result.RunID == "" {
		return errors.New("influx sink: run id required")
	}
	points := Points(result)
	if len(points) == 0 {
		return nil
	}
	if err := s.writer.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("write realization %d: %w", result.Realization, err)
	}
	return nil
}

// List implements domain.ResultStore. The sink is write-only.
func (s *Sink) List(context.Context, string) ([]domain.RealizationResult, error) {
	return nil, domain.ErrUnsupported
}

// Close releases the client.
func (s *Sink) Close() error {
	s.close()
	return nil
}
