package exporter

import (
	"fmt"
	"time"

	model "github.com/cascadiahydro/streamsync/internal/domain/model"
)

// ArchivedObservation represents one observation row in the archive.
// It includes parquet tags for serialization to Parquet format.
// It also includes GORM tags to allow direct mapping from database queries.
type ArchivedObservation struct {
	SiteID     string  `gorm:"column:site_id;primaryKey" parquet:"name=site_id,type=BYTE_ARRAY,convertedtype=UTF8,encoding=PLAIN_DICTIONARY"`
	Timestamp  int64   `gorm:"column:timestamp;primaryKey" parquet:"name=timestamp,type=INT64,convertedtype=TIMESTAMP_MILLIS"`
	Value      float64 `gorm:"column:value" parquet:"name=value,type=DOUBLE"`
	Quality    string  `gorm:"column:quality" parquet:"name=quality,type=BYTE_ARRAY,convertedtype=UTF8,encoding=PLAIN_DICTIONARY"`
	IngestedAt int64   `gorm:"column:ingested_at" parquet:"name=ingested_at,type=INT64,convertedtype=TIMESTAMP_MILLIS"`
}

// NewArchivedObservation converts a domain observation into its archive
// representation. Times are stored as Unix milliseconds.
func NewArchivedObservation(o model.Observation) ArchivedObservation {
	return ArchivedObservation{
		SiteID:     o.SiteID,
		Timestamp:  o.Timestamp.UTC().UnixMilli(),
		Value:      o.Value,
		Quality:    o.Quality,
		IngestedAt: o.IngestedAt.UTC().UnixMilli(),
	}
}

// PartitionKey returns the Hive-style partition directory for the
// observation, keyed on the UTC observation day.
func (a ArchivedObservation) PartitionKey() string {
	day := time.UnixMilli(a.Timestamp).UTC().Format("2006-01-02")
	return fmt.Sprintf("dt=%s", day)
}
