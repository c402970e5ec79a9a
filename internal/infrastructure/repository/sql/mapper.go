package sql

import (
	model "github.com/cascadiahydro/streamsync/internal/domain/model"
)

// --- Mapper functions ---

func fromDomainSite(s *model.Site) *SiteEntity {
	if s == nil {
		return nil
	}
	return &SiteEntity{
		SiteID:    s.SiteID,
		Name:      s.Name,
		StateCode: s.StateCode,
		HUCCode:   s.HUCCode,
		Latitude:  s.Latitude,
		Longitude: s.Longitude,
		IsActive:  s.IsActive,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

func toDomainSite(entity *SiteEntity) *model.Site {
	if entity == nil {
		return nil
	}
	return &model.Site{
		SiteID:    entity.SiteID,
		Name:      entity.Name,
		StateCode: entity.StateCode,
		HUCCode:   entity.HUCCode,
		Latitude:  entity.Latitude,
		Longitude: entity.Longitude,
		IsActive:  entity.IsActive,
		CreatedAt: entity.CreatedAt,
		UpdatedAt: entity.UpdatedAt,
	}
}

func fromDomainObservation(o model.Observation) ObservationEntity {
	return ObservationEntity{
		SiteID:     o.SiteID,
		Timestamp:  o.Timestamp,
		Value:      o.Value,
		Quality:    o.Quality,
		IngestedAt: o.IngestedAt,
	}
}

func toDomainObservation(entity ObservationEntity) model.Observation {
	return model.Observation{
		SiteID:     entity.SiteID,
		Timestamp:  entity.Timestamp,
		Value:      entity.Value,
		Quality:    entity.Quality,
		IngestedAt: entity.IngestedAt,
	}
}

func fromDomainWatermark(w *model.Watermark) *WatermarkEntity {
	if w == nil {
		return nil
	}
	return &WatermarkEntity{
		SiteID:        w.SiteID,
		JobType:       w.JobType,
		LastTimestamp: w.LastTimestamp,
		UpdatedAt:     w.UpdatedAt,
	}
}

func toDomainWatermark(entity *WatermarkEntity) *model.Watermark {
	if entity == nil {
		return nil
	}
	return &model.Watermark{
		SiteID:        entity.SiteID,
		JobType:       entity.JobType,
		LastTimestamp: entity.LastTimestamp,
		UpdatedAt:     entity.UpdatedAt,
	}
}

func fromDomainJobDefinition(jd *model.JobDefinition) *JobDefinitionEntity {
	if jd == nil {
		return nil
	}
	return &JobDefinitionEntity{
		JobName:         jd.JobName,
		JobType:         jd.JobType,
		IntervalMinutes: jd.IntervalMinutes,
		RetentionDays:   jd.RetentionDays,
		Enabled:         jd.Enabled,
		LastRun:         jd.LastRun,
		NextRun:         jd.NextRun,
		Version:         jd.Version,
		CreatedAt:       jd.CreatedAt,
		UpdatedAt:       jd.UpdatedAt,
	}
}

func toDomainJobDefinition(entity *JobDefinitionEntity) *model.JobDefinition {
	if entity == nil {
		return nil
	}
	return &model.JobDefinition{
		JobName:         entity.JobName,
		JobType:         entity.JobType,
		IntervalMinutes: entity.IntervalMinutes,
		RetentionDays:   entity.RetentionDays,
		Enabled:         entity.Enabled,
		LastRun:         entity.LastRun,
		NextRun:         entity.NextRun,
		Version:         entity.Version,
		CreatedAt:       entity.CreatedAt,
		UpdatedAt:       entity.UpdatedAt,
	}
}

func fromDomainJobExecution(je *model.JobExecution) *JobExecutionEntity {
	if je == nil {
		return nil
	}
	return &JobExecutionEntity{
		ID:                   je.ID,
		JobName:              je.JobName,
		StartTime:            je.StartTime,
		EndTime:              je.EndTime,
		Status:               je.Status,
		SitesAttempted:       je.SitesAttempted,
		SucceededCount:       je.SucceededCount,
		FailedCount:          je.FailedCount,
		ObservationsUpserted: je.ObservationsUpserted,
		ObservationsPurged:   je.ObservationsPurged,
		ErrorText:            je.ErrorText,
		Failures:             je.Failures,
		Version:              je.Version,
		CreatedAt:            je.CreatedAt,
		UpdatedAt:            je.UpdatedAt,
	}
}

func toDomainJobExecution(entity *JobExecutionEntity) *model.JobExecution {
	if entity == nil {
		return nil
	}
	return &model.JobExecution{
		ID:                   entity.ID,
		JobName:              entity.JobName,
		StartTime:            entity.StartTime,
		EndTime:              entity.EndTime,
		Status:               entity.Status,
		SitesAttempted:       entity.SitesAttempted,
		SucceededCount:       entity.SucceededCount,
		FailedCount:          entity.FailedCount,
		ObservationsUpserted: entity.ObservationsUpserted,
		ObservationsPurged:   entity.ObservationsPurged,
		ErrorText:            entity.ErrorText,
		Failures:             entity.Failures,
		Version:              entity.Version,
		CreatedAt:            entity.CreatedAt,
		UpdatedAt:            entity.UpdatedAt,
	}
}
