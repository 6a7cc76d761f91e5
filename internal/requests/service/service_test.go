package service

import (
	"context"
	"testing"
	"time"

	"servitec_backend/internal/requests/domain"
	"servitec_backend/internal/requests/transport"
	"servitec_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func marketplaceInput() transport.CreateRequestRequest {
	return transport.CreateRequestRequest{
		Title:    "Pérdida en el baño",
		Category: "Plomería",
		Address:  "Av. Corrientes 1234",
		City:     "Buenos Aires",
		Urgency:  "alta",
		Mode:     "marketplace",
		RadiusKm: 10,
	}
}

func action(name string) transport.ActionRequest {
	return transport.ActionRequest{Action: name}
}

func onMatch(name string, id uuid.UUID) transport.ActionRequest {
	return transport.ActionRequest{Action: name, MatchID: &id}
}

func counter(id uuid.UUID, price string, eta float64) transport.ActionRequest {
	p := decimal.RequireFromString(price)
	return transport.ActionRequest{Action: string(domain.ActionCounterOffer), MatchID: &id, Price: &p, ETAHours: &eta}
}

func (f *fixture) request(t *testing.T, id uuid.UUID) domain.Request {
	t.Helper()
	req, err := f.store.GetRequest(context.Background(), id)
	require.NoError(t, err)
	return req
}

func (f *fixture) matches(t *testing.T, id uuid.UUID) []domain.Match {
	t.Helper()
	ms, err := f.store.ListMatches(context.Background(), id)
	require.NoError(t, err)
	return ms
}

func (f *fixture) matchOf(t *testing.T, reqID, techID uuid.UUID) domain.Match {
	t.Helper()
	for _, m := range f.matches(t, reqID) {
		if m.TechnicianID == techID {
			return m
		}
	}
	t.Fatalf("no match for technician %s", techID)
	return domain.Match{}
}

func TestCreateScoresNearbyTechnician(t *testing.T) {
	f := newFixture(t)
	tech := f.dir.add(Technician{Name: "Luis", Phone: "11 5555-1234", Location: kmNorth(obelisco, 2), RadiusKm: 20, Rating: 4.5})

	in := marketplaceInput()
	in.Latitude, in.Longitude = &obelisco.Lat, &obelisco.Lng
	out, err := f.svc.Create(context.Background(), f.client, in)
	require.NoError(t, err)

	require.Len(t, out.Matches, 1)
	assert.Equal(t, tech.ID, out.Matches[0].TechnicianID)
	assert.InDelta(t, 159.0, out.Matches[0].Score, 1e-6)
	assert.Equal(t, string(domain.StatusMatched), out.Request.Status)
	assert.Empty(t, f.scheduler.match, "matched requests need no match generation")
	assert.Zero(t, f.geo.calls)
}

func TestCreateWithoutCoordinatesStaysPublishedAndSchedulesGeneration(t *testing.T) {
	f := newFixture(t)
	f.dir.add(Technician{Name: "Luis", Location: kmNorth(obelisco, 2), Rating: 4})

	out, err := f.svc.Create(context.Background(), f.client, marketplaceInput())
	require.NoError(t, err)

	assert.Equal(t, string(domain.StatusPublished), out.Request.Status)
	assert.Empty(t, out.Matches)
	assert.Equal(t, 1, f.geo.calls)
	require.Len(t, f.scheduler.match, 1)
	assert.Equal(t, t0.Add(20*time.Second), f.scheduler.match[0].at)
}

func TestCreateWithoutRadiusUsesConfiguredDefault(t *testing.T) {
	f := newFixture(t)
	near := f.dir.add(Technician{Name: "Cerca", Location: kmNorth(obelisco, 10), RadiusKm: 50, Rating: 4})
	f.dir.add(Technician{Name: "Lejos", Location: kmNorth(obelisco, 20), RadiusKm: 50, Rating: 5})

	in := marketplaceInput()
	in.RadiusKm = 0
	in.Latitude, in.Longitude = &obelisco.Lat, &obelisco.Lng
	out, err := f.svc.Create(context.Background(), f.client, in)
	require.NoError(t, err)

	assert.Equal(t, 15.0, out.Request.RadiusKm)
	assert.Equal(t, 15.0, f.request(t, out.Request.ID).RadiusKm)
	require.Len(t, out.Matches, 1)
	assert.Equal(t, near.ID, out.Matches[0].TechnicianID)
}

func TestCreateRejectsPartialCoordinates(t *testing.T) {
	f := newFixture(t)
	in := marketplaceInput()
	in.Latitude = ptr(-34.6)

	_, err := f.svc.Create(context.Background(), f.client, in)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestEnsureMatchesIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.dir.add(Technician{Name: "Luis", Specialty: "plomeria y gas", City: "Buenos Aires"})
	f.dir.add(Technician{Name: "Marta", Specialty: "electricidad", City: "Córdoba"})

	created, err := f.svc.Create(context.Background(), f.client, marketplaceInput())
	require.NoError(t, err)
	id := created.Request.ID

	ws, err := f.svc.Apply(context.Background(), f.client, id, action("ensure_matches"))
	require.NoError(t, err)
	require.Len(t, ws.Requests, 1)
	assert.Equal(t, string(domain.StatusMatched), ws.Requests[0].Status)

	first := f.matches(t, id)
	require.Len(t, first, 1, "zero-score candidates are dropped when someone scored")
	assert.Equal(t, "Luis", first[0].TechnicianName)
	assert.InDelta(t, 12.0, first[0].Score, 1e-9)

	timelineBefore, err := f.store.ListTimeline(context.Background(), id)
	require.NoError(t, err)

	_, err = f.svc.Apply(context.Background(), f.client, id, action("ensure_matches"))
	require.NoError(t, err)
	assert.Equal(t, first, f.matches(t, id))

	timelineAfter, err := f.store.ListTimeline(context.Background(), id)
	require.NoError(t, err)
	assert.Len(t, timelineAfter, len(timelineBefore))
}

func TestEnsureMatchesWithNobodyRecordsEvent(t *testing.T) {
	f := newFixture(t)
	created, err := f.svc.Create(context.Background(), f.client, marketplaceInput())
	require.NoError(t, err)

	f.clock.Add(time.Minute)
	_, err = f.svc.Apply(context.Background(), f.client, created.Request.ID, action("ensure_matches"))
	require.NoError(t, err)

	req := f.request(t, created.Request.ID)
	assert.Equal(t, domain.StatusPublished, req.Status)
	assert.Equal(t, t0.Add(time.Minute), req.UpdatedAt)

	tl, err := f.store.ListTimeline(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.LabelNoTechnicians(), tl[len(tl)-1].Label)
}

// quotedFixture creates a matched request with three candidates.
func quotedFixture(t *testing.T) (*fixture, uuid.UUID, []Technician) {
	f := newFixture(t)
	var techs []Technician
	for i, name := range []string{"Ana", "Bruno", "Carla"} {
		techs = append(techs, f.dir.add(Technician{Name: name, Location: kmNorth(obelisco, float64(i+1)), RadiusKm: 30, Rating: 4}))
	}
	in := marketplaceInput()
	in.Latitude, in.Longitude = &obelisco.Lat, &obelisco.Lng
	out, err := f.svc.Create(context.Background(), f.client, in)
	require.NoError(t, err)
	require.Len(t, out.Matches, 3)
	return f, out.Request.ID, techs
}

func TestQuoteAcceptLeavesExactlyOneAccepted(t *testing.T) {
	f, id, techs := quotedFixture(t)
	a := f.matchOf(t, id, techs[0].ID)
	b := f.matchOf(t, id, techs[1].ID)
	c := f.matchOf(t, id, techs[2].ID)

	for _, m := range []domain.Match{a, b} {
		_, err := f.svc.Apply(context.Background(), f.client, id, counter(m.ID, "15000", 24))
		require.NoError(t, err)
	}
	require.Equal(t, domain.StatusQuoted, f.request(t, id).Status)

	_, err := f.svc.Apply(context.Background(), f.client, id, onMatch("quote_accept", a.ID))
	require.NoError(t, err)

	accepted := 0
	for _, m := range f.matches(t, id) {
		if m.QuoteStatus == domain.QuoteAccepted {
			accepted++
		}
	}
	assert.Equal(t, 1, accepted)
	assert.Equal(t, domain.QuoteRejected, f.matchOf(t, id, techs[1].ID).QuoteStatus)
	assert.Equal(t, domain.QuotePending, f.matchOf(t, id, c.TechnicianID).QuoteStatus)

	req := f.request(t, id)
	assert.Equal(t, domain.StatusSelected, req.Status)
	require.NotNil(t, req.Assigned)
	assert.Equal(t, techs[0].ID, req.Assigned.ID)
	assert.Equal(t, a.ID, *req.SelectedMatchID)
}

func TestQuoteRejectRecomputesParent(t *testing.T) {
	f, id, techs := quotedFixture(t)
	a := f.matchOf(t, id, techs[0].ID)
	b := f.matchOf(t, id, techs[1].ID)
	for _, m := range []domain.Match{a, b} {
		_, err := f.svc.Apply(context.Background(), f.client, id, counter(m.ID, "9999.999", 3.4))
		require.NoError(t, err)
	}
	quoted := f.matchOf(t, id, techs[0].ID)
	assert.Equal(t, "10000", quoted.Price.String())
	assert.Equal(t, 3, *quoted.ETAHours)

	reject := onMatch("quote_reject", a.ID)
	reject.Reason = ptr("  muy caro ")
	_, err := f.svc.Apply(context.Background(), f.client, id, reject)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusQuoted, f.request(t, id).Status)
	assert.Equal(t, "muy caro", *f.matchOf(t, id, techs[0].ID).RejectionReason)

	_, err = f.svc.Apply(context.Background(), f.client, id, onMatch("quote_reject", b.ID))
	require.NoError(t, err)
	req := f.request(t, id)
	assert.Equal(t, domain.StatusMatched, req.Status)
	assert.Nil(t, req.Assigned)
}

func TestCounterOfferValidation(t *testing.T) {
	f, id, techs := quotedFixture(t)
	m := f.matchOf(t, id, techs[0].ID)

	for _, in := range []transport.ActionRequest{
		counter(m.ID, "0", 10),
		counter(m.ID, "-5", 10),
		counter(m.ID, "0.004", 10),
		counter(m.ID, "100", 0.5),
		counter(m.ID, "100", 721),
		{Action: "counter_offer", MatchID: &m.ID},
	} {
		_, err := f.svc.Apply(context.Background(), f.client, id, in)
		assert.True(t, apperr.Is(err, apperr.KindValidation), "input %+v", in)
	}
	assert.Equal(t, domain.StatusMatched, f.request(t, id).Status)

	_, err := f.svc.Apply(context.Background(), f.client, id, counter(m.ID, "100", 720))
	require.NoError(t, err)
}

func TestCounterOfferReopensAcceptedSibling(t *testing.T) {
	f, id, techs := quotedFixture(t)
	a := f.matchOf(t, id, techs[0].ID)
	b := f.matchOf(t, id, techs[1].ID)

	_, err := f.svc.Apply(context.Background(), f.client, id, counter(a.ID, "100", 5))
	require.NoError(t, err)
	_, err = f.svc.Apply(context.Background(), f.client, id, onMatch("quote_accept", a.ID))
	require.NoError(t, err)
	_, err = f.svc.Apply(context.Background(), f.client, id, counter(b.ID, "90", 5))
	require.NoError(t, err)

	assert.Equal(t, domain.QuoteSubmitted, f.matchOf(t, id, techs[0].ID).QuoteStatus)
	req := f.request(t, id)
	assert.Equal(t, domain.StatusQuoted, req.Status)
	assert.Nil(t, req.Assigned)
	assert.Nil(t, req.SelectedMatchID)
}

func TestAdvanceLadderAndRejection(t *testing.T) {
	f, id, techs := quotedFixture(t)

	before := f.request(t, id)
	_, err := f.svc.Apply(context.Background(), f.client, id, action("advance"))
	require.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Equal(t, before, f.request(t, id))

	_, err = f.svc.Apply(context.Background(), f.client, id, onMatch("select_match", f.matchOf(t, id, techs[2].ID).ID))
	require.NoError(t, err)
	for _, want := range []domain.Status{domain.StatusScheduled, domain.StatusInProgress, domain.StatusCompleted} {
		_, err = f.svc.Apply(context.Background(), f.client, id, action("advance"))
		require.NoError(t, err)
		assert.Equal(t, want, f.request(t, id).Status)
	}

	_, err = f.svc.Apply(context.Background(), f.client, id, action("advance"))
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	_, err = f.svc.Apply(context.Background(), f.client, id, action("cancel"))
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Equal(t, techs[2].ID, f.request(t, id).Assigned.ID)
}

func TestSetStatusFollowsStateMachineEdges(t *testing.T) {
	f, id, _ := quotedFixture(t)

	set := func(status string) error {
		_, err := f.svc.Apply(context.Background(), f.client, id, transport.ActionRequest{Action: "set_status", Status: &status})
		return err
	}
	assert.True(t, apperr.Is(set("completed"), apperr.KindValidation))
	assert.True(t, apperr.Is(set("selected"), apperr.KindValidation))
	assert.True(t, apperr.Is(set("bogus"), apperr.KindValidation))
	require.NoError(t, set("published"))
	assert.Equal(t, domain.StatusPublished, f.request(t, id).Status)
	require.NoError(t, set("cancelled"))
	assert.Equal(t, domain.StatusCancelled, f.request(t, id).Status)
}

func TestApplyRejectsUnknownActionAndForeignRequest(t *testing.T) {
	f, id, _ := quotedFixture(t)

	_, err := f.svc.Apply(context.Background(), f.client, id, action("delete"))
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	stranger := ClientActor(uuid.New(), "Otro")
	_, err = f.svc.Apply(context.Background(), stranger, id, action("cancel"))
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	assert.Equal(t, domain.StatusMatched, f.request(t, id).Status)

	_, err = f.svc.Apply(context.Background(), f.client, id, action("select_match"))
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	_, err = f.svc.Apply(context.Background(), f.client, id, onMatch("select_match", uuid.New()))
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func directFixture(t *testing.T) (*fixture, uuid.UUID, Technician) {
	f := newFixture(t)
	tech := f.dir.add(Technician{Name: "Diego", Phone: "1144443333", Location: kmNorth(obelisco, 3), RadiusKm: 15, Rating: 5})
	in := marketplaceInput()
	in.Mode = "direct"
	in.TargetTechnicianID = &tech.ID
	in.Latitude, in.Longitude = &obelisco.Lat, &obelisco.Lng
	out, err := f.svc.Create(context.Background(), f.client, in)
	require.NoError(t, err)
	require.Len(t, out.Matches, 1)
	return f, out.Request.ID, tech
}

func TestDirectRequestExpiresToMarketplace(t *testing.T) {
	f, id, _ := directFixture(t)

	req := f.request(t, id)
	require.Equal(t, domain.StatusDirectSent, req.Status)
	require.Equal(t, t0.Add(20*time.Minute), *req.DirectExpiresAt)
	require.Len(t, f.scheduler.direct, 1)
	assert.Equal(t, t0.Add(20*time.Minute), f.scheduler.direct[0].at)

	f.clock.Set(t0.Add(19 * time.Minute))
	outcome, err := f.svc.ApplyTimeout(context.Background(), id, domain.ActionOpenMarketplace, SourceWatch)
	require.NoError(t, err)
	assert.False(t, outcome.Applied)
	require.NotNil(t, outcome.RetryAt)
	assert.Equal(t, t0.Add(20*time.Minute), *outcome.RetryAt)

	f.clock.Set(t0.Add(21 * time.Minute))
	outcome, err = f.svc.ApplyTimeout(context.Background(), id, domain.ActionOpenMarketplace, SourceWatch)
	require.NoError(t, err)
	assert.True(t, outcome.Applied)

	req = f.request(t, id)
	assert.Equal(t, domain.StatusPublished, req.Status)
	assert.Equal(t, domain.ModeMarketplace, req.Mode)
	assert.Nil(t, req.Target)
	assert.Nil(t, req.DirectExpiresAt)
	require.Len(t, f.scheduler.match, 1)
	assert.Equal(t, t0.Add(21*time.Minute+20*time.Second), f.scheduler.match[0].at)

	outcome, err = f.svc.ApplyTimeout(context.Background(), id, domain.ActionOpenMarketplace, SourceScheduler)
	require.NoError(t, err)
	assert.False(t, outcome.Applied)
	assert.Nil(t, outcome.RetryAt)
}

func TestMatchGenerationTimeout(t *testing.T) {
	f := newFixture(t)
	f.dir.add(Technician{Name: "Luis", Specialty: "plomería", City: "Buenos Aires"})
	created, err := f.svc.Create(context.Background(), f.client, marketplaceInput())
	require.NoError(t, err)
	id := created.Request.ID

	f.clock.Add(10 * time.Second)
	outcome, err := f.svc.ApplyTimeout(context.Background(), id, domain.ActionEnsureMatches, SourceScheduler)
	require.NoError(t, err)
	assert.False(t, outcome.Applied)
	assert.Equal(t, t0.Add(20*time.Second), *outcome.RetryAt)

	f.clock.Add(10 * time.Second)
	outcome, err = f.svc.ApplyTimeout(context.Background(), id, domain.ActionEnsureMatches, SourceScheduler)
	require.NoError(t, err)
	assert.True(t, outcome.Applied)
	assert.Equal(t, domain.StatusMatched, f.request(t, id).Status)
	assert.Len(t, f.matches(t, id), 1)

	tl, err := f.store.ListTimeline(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, domain.ActorSystem, tl[len(tl)-1].ActorType)
}

func TestMatchGenerationWithNobodyRequeuesDurableCheck(t *testing.T) {
	f := newFixture(t)
	created, err := f.svc.Create(context.Background(), f.client, marketplaceInput())
	require.NoError(t, err)
	id := created.Request.ID
	require.Len(t, f.scheduler.match, 1)

	f.clock.Add(20 * time.Second)
	outcome, err := f.svc.ApplyTimeout(context.Background(), id, domain.ActionEnsureMatches, SourceScheduler)
	require.NoError(t, err)
	assert.True(t, outcome.Applied)
	assert.Equal(t, domain.StatusPublished, f.request(t, id).Status)

	require.Len(t, f.scheduler.match, 2)
	assert.Equal(t, id, f.scheduler.match[1].id)
	assert.Equal(t, t0.Add(40*time.Second), f.scheduler.match[1].at)

	f.dir.add(Technician{Name: "Luis", City: "Buenos Aires", Rating: 4})
	f.clock.Add(20 * time.Second)
	outcome, err = f.svc.ApplyTimeout(context.Background(), id, domain.ActionEnsureMatches, SourceScheduler)
	require.NoError(t, err)
	assert.True(t, outcome.Applied)
	assert.Equal(t, domain.StatusMatched, f.request(t, id).Status)
	assert.Len(t, f.scheduler.match, 2, "matched requests are not re-armed")
}

func TestDirectResponseByTechnician(t *testing.T) {
	f, id, tech := directFixture(t)
	other := TechnicianActor(uuid.New(), "Intruso")

	_, err := f.svc.RespondDirect(context.Background(), other, id, true, nil)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	out, err := f.svc.RespondDirect(context.Background(), TechnicianActor(tech.ID, tech.Name), id, true, nil)
	require.NoError(t, err)
	assert.Equal(t, string(domain.StatusSelected), out.Status)

	req := f.request(t, id)
	require.NotNil(t, req.Assigned)
	assert.Equal(t, tech.ID, req.Assigned.ID)
	assert.Nil(t, req.DirectExpiresAt)

	_, err = f.svc.RespondDirect(context.Background(), TechnicianActor(tech.ID, tech.Name), id, false, nil)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestDirectResponseAfterExpiry(t *testing.T) {
	f, id, tech := directFixture(t)
	f.clock.Set(t0.Add(21 * time.Minute))
	outcome, err := f.svc.ApplyTimeout(context.Background(), id, domain.ActionOpenMarketplace, SourceWatch)
	require.NoError(t, err)
	require.True(t, outcome.Applied)

	_, err = f.svc.RespondDirect(context.Background(), TechnicianActor(tech.ID, tech.Name), id, true, nil)
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = f.svc.RespondDirect(context.Background(), TechnicianActor(uuid.New(), "Otro"), id, true, nil)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Equal(t, domain.StatusPublished, f.request(t, id).Status)
}

func TestDirectRejectionReopens(t *testing.T) {
	f, id, tech := directFixture(t)

	out, err := f.svc.RespondDirect(context.Background(), TechnicianActor(tech.ID, tech.Name), id, false, ptr("sin agenda"))
	require.NoError(t, err)
	assert.Equal(t, string(domain.StatusPublished), out.Status)

	tl, err := f.store.ListTimeline(context.Background(), id)
	require.NoError(t, err)
	assert.Contains(t, tl[len(tl)-1].Label, "sin agenda")
	assert.Nil(t, f.request(t, id).Target)
}

func TestNegotiationRefusedWhileDirectPending(t *testing.T) {
	f, id, tech := directFixture(t)
	m := f.matchOf(t, id, tech.ID)

	_, err := f.svc.Apply(context.Background(), f.client, id, counter(m.ID, "100", 5))
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	_, err = f.svc.Apply(context.Background(), f.client, id, action("ensure_matches"))
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestNearbyFiltersAndOrders(t *testing.T) {
	f := newFixture(t)
	me := f.dir.add(Technician{Name: "Yo", Location: &obelisco, RadiusKm: 10})
	other := f.dir.add(Technician{Name: "Otro", Location: kmNorth(obelisco, 50), RadiusKm: 10})

	create := func(urgency string, km float64, mode string, target *uuid.UUID) uuid.UUID {
		in := marketplaceInput()
		in.Urgency = urgency
		in.Mode = mode
		in.TargetTechnicianID = target
		p := kmNorth(obelisco, km)
		in.Latitude, in.Longitude = &p.Lat, &p.Lng
		out, err := f.svc.Create(context.Background(), f.client, in)
		require.NoError(t, err)
		f.clock.Add(time.Minute)
		return out.Request.ID
	}
	lowNear := create("baja", 1, "marketplace", nil)
	highFar := create("alta", 8, "marketplace", nil)
	highNear := create("alta", 2, "marketplace", nil)
	create("alta", 1, "direct", &other.ID)
	mine := create("media", 4, "direct", &me.ID)
	create("alta", 30, "marketplace", nil)

	// Created while the geocoder knows nothing, resolved by Nearby.
	in := marketplaceInput()
	in.Address = "Calle Falsa 123"
	in.Urgency = "baja"
	unresolved, err := f.svc.Create(context.Background(), f.client, in)
	require.NoError(t, err)
	f.geo.points["Calle Falsa 123, Buenos Aires"] = *kmNorth(obelisco, 3)

	out, err := f.svc.Nearby(context.Background(), TechnicianActor(me.ID, me.Name))
	require.NoError(t, err)

	var got []uuid.UUID
	for _, it := range out.Items {
		got = append(got, it.ID)
	}
	assert.Equal(t, []uuid.UUID{highNear, highFar, mine, lowNear, unresolved.Request.ID}, got)
	assert.True(t, out.Items[2].DirectToMe)
	assert.True(t, f.request(t, unresolved.Request.ID).HasCoordinates(), "geocoded coordinates are persisted")
}

func TestNearbyWithoutBaseLocation(t *testing.T) {
	f := newFixture(t)
	me := f.dir.add(Technician{Name: "Yo", BaseAddress: "Sin datos"})

	_, err := f.svc.Nearby(context.Background(), TechnicianActor(me.ID, me.Name))
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = f.svc.Nearby(context.Background(), TechnicianActor(uuid.New(), "nadie"))
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestSubmitQuoteCreatesCandidacy(t *testing.T) {
	f := newFixture(t)
	me := f.dir.add(Technician{Name: "Yo", Location: kmNorth(obelisco, 1), RadiusKm: 10, Rating: 3})
	created, err := f.svc.Create(context.Background(), f.client, marketplaceInput())
	require.NoError(t, err)
	id := created.Request.ID

	_, err = f.svc.SubmitQuote(context.Background(), TechnicianActor(me.ID, me.Name), id, transport.SubmitQuoteRequest{
		Price: decimal.RequireFromString("0"), ETAHours: 4,
	})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	quote, err := f.svc.SubmitQuote(context.Background(), TechnicianActor(me.ID, me.Name), id, transport.SubmitQuoteRequest{
		Price: decimal.RequireFromString("2500.5"), ETAHours: 4, Note: ptr("incluye materiales"),
	})
	require.NoError(t, err)
	assert.Equal(t, "submitted", quote.QuoteStatus)
	assert.Equal(t, "2500.50", *quote.Price)

	assert.Equal(t, domain.StatusQuoted, f.request(t, id).Status)
	require.Len(t, f.matches(t, id), 1)

	_, err = f.svc.SubmitQuote(context.Background(), TechnicianActor(me.ID, me.Name), id, transport.SubmitQuoteRequest{
		Price: decimal.RequireFromString("2400"), ETAHours: 6,
	})
	require.NoError(t, err)
	ms := f.matches(t, id)
	require.Len(t, ms, 1)
	assert.Equal(t, 6, *ms[0].ETAHours)
}

func TestWorkspaceListsKnownTechniciansOnce(t *testing.T) {
	f, id, techs := quotedFixture(t)
	_, err := f.svc.Apply(context.Background(), f.client, id, onMatch("select_match", f.matchOf(t, id, techs[0].ID).ID))
	require.NoError(t, err)

	ws, err := f.svc.Workspace(context.Background(), f.client)
	require.NoError(t, err)
	assert.Len(t, ws.Technicians, 3)
	require.Len(t, ws.Requests, 1)
	assert.Equal(t, []string{"published", "cancelled", "scheduled"}, ws.Requests[0].AllowedStatuses)

	tl, err := f.svc.Timeline(context.Background(), f.client, id)
	require.NoError(t, err)
	assert.Equal(t, domain.LabelSelected("Ana"), tl[len(tl)-1].Label)
}
