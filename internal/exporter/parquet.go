// Package exporter writes stored observations to Parquet archives on object
// storage, partitioned by observation day.
package exporter

import (
	"bytes"
	"context"
	"fmt"
	"math/rand"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/cascadiahydro/streamsync/internal/adapter/storage"
	"github.com/cascadiahydro/streamsync/internal/config"
	"github.com/cascadiahydro/streamsync/internal/domain/repository"
	"github.com/cascadiahydro/streamsync/internal/support/configbinder"
	"github.com/cascadiahydro/streamsync/internal/support/exception"
	"github.com/cascadiahydro/streamsync/internal/support/logger"
)

const moduleName = "ParquetExporter"

// Result summarizes one export pass.
type Result struct {
	// RecordsExported is the number of observation rows written.
	RecordsExported int64
	// ObjectsWritten lists the object names uploaded to storage.
	ObjectsWritten []string
}

// Exporter writes observations within a time window to archive storage.
type Exporter interface {
	// Export archives every observation in the half-open window [start, end).
	// An empty window produces no objects and is not an error.
	Export(ctx context.Context, start, end time.Time) (*Result, error)
}

// parquetOptions holds the format-specific settings bound from the export
// configuration's options map.
type parquetOptions struct {
	// Compression is the Parquet compression codec ("SNAPPY", "GZIP", "NONE").
	Compression string `yaml:"compression"`
}

// ParquetExporter implements Exporter using the xitongsys Parquet writer.
// Each observation-day partition becomes one Parquet object under
// prefix/dt=YYYY-MM-DD/.
type ParquetExporter struct {
	cfg      config.ExportConfig
	options  parquetOptions
	repo     repository.SyncRepository
	resolver storage.StorageConnectionResolver
}

// NewParquetExporter creates a ParquetExporter from the export configuration.
func NewParquetExporter(
	cfg *config.Config,
	repo repository.SyncRepository,
	resolver storage.StorageConnectionResolver,
) (*ParquetExporter, error) {
	exportCfg := cfg.Streamsync.Export
	if exportCfg.Format != "" && exportCfg.Format != "parquet" {
		return nil, exception.NewSyncError(
			moduleName,
			fmt.Sprintf("unsupported export format '%s': only 'parquet' is supported", exportCfg.Format),
			nil,
			false,
			false,
		)
	}
	if exportCfg.Connection == "" {
		return nil, exception.NewSyncError(moduleName, "export requires a storage connection name", nil, false, false)
	}

	var options parquetOptions
	if exportCfg.Options != nil {
		if err := configbinder.BindProperties(exportCfg.Options, &options); err != nil {
			return nil, exception.NewSyncError(moduleName, "failed to bind export options", err, false, false)
		}
	}
	if options.Compression == "" {
		options.Compression = "SNAPPY"
	}

	return &ParquetExporter{
		cfg:      exportCfg,
		options:  options,
		repo:     repo,
		resolver: resolver,
	}, nil
}

// Export loads the window's observations, groups them by observation day and
// uploads one Parquet object per partition. Partitions fail independently;
// the aggregated error reports every failed partition.
func (e *ParquetExporter) Export(ctx context.Context, start, end time.Time) (*Result, error) {
	observations, err := e.repo.FindObservationsInRange(ctx, start, end)
	if err != nil {
		return nil, exception.NewSyncError(moduleName, "failed to load observations for export", err, false, true)
	}

	result := &Result{}
	if len(observations) == 0 {
		logger.Infof("Export window [%s, %s) contains no observations, nothing to archive.",
			start.UTC().Format(time.RFC3339), end.UTC().Format(time.RFC3339))
		return result, nil
	}

	partitions := make(map[string][]ArchivedObservation)
	for _, o := range observations {
		archived := NewArchivedObservation(o)
		key := archived.PartitionKey()
		partitions[key] = append(partitions[key], archived)
	}

	compressionCodec, err := getCompressionCodec(e.options.Compression)
	if err != nil {
		return nil, exception.NewSyncError(moduleName, "invalid export compression type", err, false, false)
	}

	conn, err := e.resolver.ResolveStorageConnection(ctx, e.cfg.Connection)
	if err != nil {
		return nil, exception.NewSyncError(
			moduleName,
			fmt.Sprintf("failed to resolve storage connection '%s'", e.cfg.Connection),
			err,
			false,
			true,
		)
	}

	var multiErr error
	for partitionKey, items := range partitions {
		objectName, err := e.writePartition(ctx, conn, partitionKey, items, compressionCodec)
		if err != nil {
			multiErr = multierror.Append(multiErr, err)
			continue
		}
		result.RecordsExported += int64(len(items))
		result.ObjectsWritten = append(result.ObjectsWritten, objectName)
	}

	logger.Infof("Export archived %d observations into %d objects under '%s'.",
		result.RecordsExported, len(result.ObjectsWritten), e.cfg.Prefix)
	return result, multiErr
}

// writePartition serializes one partition to a Parquet buffer and uploads it.
func (e *ParquetExporter) writePartition(
	ctx context.Context,
	conn storage.StorageConnection,
	partitionKey string,
	items []ArchivedObservation,
	codec parquet.CompressionCodec,
) (string, error) {
	buf := new(bytes.Buffer)

	// One row group per object keeps files self-contained.
	pw, err := writer.NewParquetWriterFromWriter(buf, new(ArchivedObservation), int64(len(items)))
	if err != nil {
		return "", exception.NewSyncError(
			moduleName,
			fmt.Sprintf("failed to create Parquet writer for partition '%s'", partitionKey),
			err,
			false,
			false,
		)
	}
	pw.CompressionType = codec

	for _, item := range items {
		if err := pw.Write(item); err != nil {
			return "", exception.NewSyncError(
				moduleName,
				fmt.Sprintf("failed to write observation to partition '%s'", partitionKey),
				err,
				false,
				false,
			)
		}
	}

	// WriteStop can panic inside the library on malformed schemas; convert
	// panics into errors so one partition cannot take down the export.
	if err := stopWriter(pw, partitionKey); err != nil {
		return "", err
	}

	fileName := fmt.Sprintf("observations_%s_%s.parquet", time.Now().UTC().Format("20060102150405"), randomSuffix(8))
	objectName := filepath.Join(e.cfg.Prefix, partitionKey, fileName)

	logger.Debugf("Uploading %d bytes to '%s'.", buf.Len(), objectName)
	if err := conn.Upload(ctx, "", objectName, buf, "application/octet-stream"); err != nil {
		return "", exception.NewSyncError(
			moduleName,
			fmt.Sprintf("failed to upload partition '%s' to '%s'", partitionKey, objectName),
			err,
			false,
			true,
		)
	}
	return objectName, nil
}

func stopWriter(pw *writer.ParquetWriter, partitionKey string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = exception.NewSyncError(
				moduleName,
				fmt.Sprintf("Parquet writer panicked during WriteStop for partition '%s': %v", partitionKey, r),
				nil,
				false,
				false,
			)
		}
	}()
	if stopErr := pw.WriteStop(); stopErr != nil {
		return exception.NewSyncError(
			moduleName,
			fmt.Sprintf("failed to finalize Parquet file for partition '%s'", partitionKey),
			stopErr,
			false,
			false,
		)
	}
	return nil
}

// getCompressionCodec returns the Parquet compression codec from a string.
func getCompressionCodec(compressionType string) (parquet.CompressionCodec, error) {
	switch strings.ToUpper(compressionType) {
	case "SNAPPY":
		return parquet.CompressionCodec_SNAPPY, nil
	case "GZIP":
		return parquet.CompressionCodec_GZIP, nil
	case "NONE", "":
		return parquet.CompressionCodec_UNCOMPRESSED, nil
	default:
		return 0, fmt.Errorf("unsupported compression type: %s", compressionType)
	}
}

// randomSuffix generates a random string to keep object names unique.
func randomSuffix(length int) string {
	const charset = "abcdefghijklmnopqrstuvwxyz0123456789"
	seededRand := rand.New(rand.NewSource(time.Now().UnixNano()))
	b := make([]byte, length)
	for i := range b {
		b[i] = charset[seededRand.Intn(len(charset))]
	}
	return string(b)
}

var _ Exporter = (*ParquetExporter)(nil)
