package service

import (
	"context"
	"log/slog"

	"servitec_backend/platform/apperr"
)

// MissingCoordinatesLister is implemented by directories that can list
// technicians whose base address was never geocoded.
type MissingCoordinatesLister interface {
	MissingCoordinates(ctx context.Context, limit int) ([]Technician, error)
}

// BackfillReport counts what one backfill run looked at and resolved.
type BackfillReport struct {
	Requests            int
	RequestsResolved    int
	Technicians         int
	TechniciansResolved int
}

// BackfillCoordinates geocodes open requests and technician bases that have an
// address but no coordinates, batch by batch. A batch that resolves nothing
// ends its pass, so unresolvable addresses do not loop forever.
func (s *Service) BackfillCoordinates(ctx context.Context, batch int) (BackfillReport, error) {
	var report BackfillReport
	if s.geocoder == nil {
		return report, apperr.New(apperr.KindUnavailable, "no hay un geocodificador configurado")
	}
	if batch < 1 {
		batch = 25
	}

	for ctx.Err() == nil {
		reqs, err := s.store.ListMissingCoordinates(ctx, batch)
		if err != nil {
			return report, apperr.Store("list requests missing coordinates", err)
		}
		if len(reqs) == 0 {
			break
		}
		resolved := 0
		for _, req := range reqs {
			if s.ensureCoordinates(ctx, req).HasCoordinates() {
				resolved++
			}
		}
		report.Requests += len(reqs)
		report.RequestsResolved += resolved
		if resolved == 0 {
			break
		}
	}

	lister, ok := s.directory.(MissingCoordinatesLister)
	if !ok {
		return report, ctx.Err()
	}
	for ctx.Err() == nil {
		techs, err := lister.MissingCoordinates(ctx, batch)
		if err != nil {
			return report, apperr.Store("list technicians missing coordinates", err)
		}
		if len(techs) == 0 {
			break
		}
		resolved := 0
		for _, t := range techs {
			p := s.geocode(ctx, t.BaseAddress, t.City)
			if p == nil {
				continue
			}
			if err := s.directory.SetCoordinates(ctx, t.ID, *p); err != nil {
				s.log.DatabaseError("set technician coordinates", err)
				continue
			}
			resolved++
		}
		report.Technicians += len(techs)
		report.TechniciansResolved += resolved
		if resolved == 0 {
			break
		}
	}

	s.log.Info("coordinate backfill finished",
		slog.Int("requests", report.Requests),
		slog.Int("requests_resolved", report.RequestsResolved),
		slog.Int("technicians", report.Technicians),
		slog.Int("technicians_resolved", report.TechniciansResolved),
	)
	return report, ctx.Err()
}
