package transfer

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pulseroute/api/internal/domain/hospital"
	"github.com/pulseroute/api/internal/platform/matching"
	"github.com/pulseroute/api/pkg/geo"
)

// Up to this many hospitals receive a request from one matching pass.
const maxFanOut = 10

// Fallback scoring when the ranking service is unreachable: every nearby
// hospital gets a flat score and a straight-line travel estimate.
const (
	fallbackScore        = 0.5
	fallbackMinutesPerKm = 2
)

// Ranker scores candidate hospitals for a patient.
type Ranker interface {
	Rank(ctx context.Context, req matching.RankRequest) ([]matching.Match, error)
}

// Directory supplies the locally known hospital set for fallback matching.
type Directory interface {
	FindNearby(ctx context.Context, lat, lon, radiusKm float64) ([]*hospital.Nearby, error)
	Get(ctx context.Context, id uuid.UUID) (*hospital.Hospital, error)
}

type Service struct {
	patients PatientRepository
	requests RequestRepository
	ranker   Ranker
	dir      Directory
	radiusKm float64
	log      zerolog.Logger
}

func NewService(patients PatientRepository, requests RequestRepository, ranker Ranker, dir Directory, radiusKm float64, log zerolog.Logger) *Service {
	return &Service{
		patients: patients,
		requests: requests,
		ranker:   ranker,
		dir:      dir,
		radiusKm: radiusKm,
		log:      log,
	}
}

// Register validates and persists a new patient, then attempts a matching
// pass. A ranking outage is absorbed: the patient is returned in the
// searching state and the caller retries explicitly.
func (s *Service) Register(ctx context.Context, emsUnitID uuid.UUID, in RegisterInput) (*Patient, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	p := &Patient{
		Name:         in.Name,
		Age:          in.Age,
		Gender:       in.Gender,
		DiseaseCode:  in.DiseaseCode,
		SeverityCode: in.SeverityCode,
		Latitude:     in.Latitude,
		Longitude:    in.Longitude,
		Vitals:       in.Vitals,
		EMSUnitID:    emsUnitID,
		Status:       PatientSearching,
	}
	if err := s.patients.Create(ctx, p); err != nil {
		return nil, err
	}

	matches, err := s.rankWithFallback(ctx, p)
	if err != nil || len(matches) == 0 {
		if err != nil {
			s.log.Warn().Err(err).Str("patient_id", p.ID.String()).Msg("matching unavailable, patient stays searching")
		}
		return p, nil
	}

	if err := s.fanOut(ctx, p, matches); err != nil {
		s.log.Error().Err(err).Str("patient_id", p.ID.String()).Msg("fan-out failed, patient stays searching")
		return p, nil
	}

	p.Status = PatientMatched
	p.MatchedHospitals = matches
	return p, nil
}

// RetryMatch re-runs matching for a patient still searching. Unlike
// Register, a failed or empty matching pass is surfaced to the caller.
func (s *Service) RetryMatch(ctx context.Context, patientID, emsUnitID uuid.UUID) (*Patient, error) {
	p, err := s.patients.GetByID(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if p.EMSUnitID != emsUnitID {
		return nil, ErrForbidden
	}
	if p.Status != PatientSearching {
		return nil, ErrNotEligible
	}

	matches, err := s.rankWithFallback(ctx, p)
	if err != nil {
		return nil, ErrMatchingFailed
	}
	if len(matches) == 0 {
		return nil, ErrMatchingFailed
	}

	if err := s.fanOut(ctx, p, matches); err != nil {
		return nil, err
	}

	p.Status = PatientMatched
	p.MatchedHospitals = matches
	return p, nil
}

// rankWithFallback calls the ranking service, falling back to a plain
// distance sort over the local hospital directory when it is unreachable.
func (s *Service) rankWithFallback(ctx context.Context, p *Patient) ([]matching.Match, error) {
	nearby, err := s.dir.FindNearby(ctx, p.Latitude, p.Longitude, s.radiusKm)
	if err != nil {
		return nil, err
	}
	if len(nearby) == 0 {
		return nil, nil
	}

	candidates := make([]matching.HospitalInfo, 0, len(nearby))
	for _, n := range nearby {
		candidates = append(candidates, matching.HospitalInfo{
			ID:            n.ID.String(),
			Name:          n.Name,
			Address:       n.Address,
			Latitude:      n.Latitude,
			Longitude:     n.Longitude,
			AvailableBeds: n.AvailableBeds,
			TraumaCenter:  n.TraumaCenter,
		})
	}

	matches, err := s.ranker.Rank(ctx, matching.RankRequest{
		Patient: matching.PatientInfo{
			Severity:  p.SeverityCode,
			Symptoms:  []string{p.DiseaseCode},
			Latitude:  p.Latitude,
			Longitude: p.Longitude,
		},
		Hospitals: candidates,
	})
	if err == nil {
		return matches, nil
	}

	s.log.Warn().Err(err).Msg("ranking service unavailable, using distance fallback")
	fallback := make([]matching.Match, 0, len(nearby))
	for _, n := range nearby {
		fallback = append(fallback, matching.Match{
			HospitalID:    n.ID.String(),
			Name:          n.Name,
			Address:       n.Address,
			Score:         fallbackScore,
			DistanceKm:    n.DistanceKm,
			ETAMinutes:    int(math.Ceil(n.DistanceKm * fallbackMinutesPerKm)),
			Reason:        "nearest available hospital",
			AvailableBeds: n.AvailableBeds,
			TraumaCenter:  n.TraumaCenter,
		})
	}
	return fallback, nil
}

// fanOut writes pending requests for the top candidates and advances the
// patient to matched. All writes commit together; on failure the patient
// keeps its current status.
func (s *Service) fanOut(ctx context.Context, p *Patient, matches []matching.Match) error {
	n := len(matches)
	if n > maxFanOut {
		n = maxFanOut
	}

	reqs := make([]*TransferRequest, 0, n)
	for _, m := range matches[:n] {
		hid, err := uuid.Parse(m.HospitalID)
		if err != nil {
			continue
		}
		reqs = append(reqs, &TransferRequest{
			PatientID:       p.ID,
			EMSUnitID:       p.EMSUnitID,
			HospitalID:      hid,
			HospitalName:    m.Name,
			HospitalAddress: m.Address,
			Score:           m.Score,
			DistanceKm:      m.DistanceKm,
			ETAMinutes:      m.ETAMinutes,
			Reason:          m.Reason,
			AvailableBeds:   m.AvailableBeds,
			TraumaCenter:    m.TraumaCenter,
		})
	}
	if len(reqs) == 0 {
		return ErrMatchingFailed
	}

	return s.requests.CreateBatch(ctx, p.ID, PatientMatched, reqs)
}

// CreateRequest dispatches a single request to an explicitly chosen
// hospital, bypassing the ranking pass.
func (s *Service) CreateRequest(ctx context.Context, patientID, emsUnitID, hospitalID uuid.UUID) (*TransferRequest, error) {
	p, err := s.patients.GetByID(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if p.EMSUnitID != emsUnitID {
		return nil, ErrForbidden
	}
	if p.Status == PatientTransferred {
		return nil, ErrConflict
	}

	h, err := s.dir.Get(ctx, hospitalID)
	if err != nil {
		return nil, ErrNotFound
	}

	d := geo.DistanceKm(p.Latitude, p.Longitude, h.Latitude, h.Longitude)
	req := &TransferRequest{
		PatientID:       p.ID,
		EMSUnitID:       p.EMSUnitID,
		HospitalID:      h.ID,
		HospitalName:    h.Name,
		HospitalAddress: h.Address,
		DistanceKm:      d,
		ETAMinutes:      int(math.Ceil(d * fallbackMinutesPerKm)),
		AvailableBeds:   h.AvailableBeds,
		TraumaCenter:    h.TraumaCenter,
		Reason:          "selected by ems unit",
	}
	if err := s.requests.CreateBatch(ctx, p.ID, PatientRequesting, []*TransferRequest{req}); err != nil {
		return nil, err
	}
	return req, nil
}

// Accept resolves a pending request in the caller hospital's favor. Sibling
// pending requests are cancelled and a chat room is opened, all atomically.
func (s *Service) Accept(ctx context.Context, requestID, hospitalID, hospitalUserID uuid.UUID) (*TransferRequest, error) {
	res, err := s.requests.Accept(ctx, requestID, hospitalID, hospitalUserID)
	if err != nil {
		return nil, err
	}
	s.log.Info().
		Str("request_id", requestID.String()).
		Str("chat_room_id", res.ChatRoomID.String()).
		Int("cancelled_siblings", len(res.Cancelled)).
		Msg("transfer request accepted")
	return res.Request, nil
}

// Reject declines a pending request. Siblings are untouched.
func (s *Service) Reject(ctx context.Context, requestID, hospitalID uuid.UUID, reason string) (*TransferRequest, error) {
	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.HospitalID != hospitalID {
		return nil, ErrNotFound
	}
	if req.Status != RequestPending {
		return nil, ErrConflict
	}

	if reason == "" {
		reason = DefaultRejectReason
	}
	if err := s.requests.MarkRejected(ctx, requestID, reason); err != nil {
		return nil, err
	}
	req.Status = RequestRejected
	req.RejectReason = &reason
	return req, nil
}

// Complete marks the patient transferred. Idempotent for already
// transferred patients.
func (s *Service) Complete(ctx context.Context, patientID, emsUnitID uuid.UUID) (*Patient, error) {
	p, err := s.patients.GetByID(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if p.EMSUnitID != emsUnitID {
		return nil, ErrForbidden
	}
	if p.Status == PatientTransferred {
		return p, nil
	}

	if err := s.patients.UpdateStatus(ctx, p.ID, PatientTransferred); err != nil {
		return nil, err
	}
	p.Status = PatientTransferred
	return p, nil
}

// GetPatient returns a patient visible to its owning EMS unit.
func (s *Service) GetPatient(ctx context.Context, patientID, emsUnitID uuid.UUID) (*Patient, error) {
	p, err := s.patients.GetByID(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if p.EMSUnitID != emsUnitID {
		return nil, ErrForbidden
	}
	return p, nil
}

// PendingForHospital lists open requests addressed to a hospital.
func (s *Service) PendingForHospital(ctx context.Context, hospitalID uuid.UUID, limit, offset int) ([]*TransferRequest, int, error) {
	return s.requests.ListPendingByHospital(ctx, hospitalID, limit, offset)
}

// History lists the patients registered by an EMS unit, newest first.
func (s *Service) History(ctx context.Context, emsUnitID uuid.UUID, limit, offset int) ([]*Patient, int, error) {
	return s.patients.ListByEMSUnit(ctx, emsUnitID, limit, offset)
}

// HistoryFilter bounds the accepted-transfer history query.
type HistoryFilter struct {
	Since        time.Time
	SeverityCode string
}

// AcceptedHistory lists completed placements visible to the caller's side
// of the transfer: the registering EMS unit or the accepting hospital.
func (s *Service) AcceptedHistory(ctx context.Context, callerType string, emsUnitID, hospitalID uuid.UUID, f HistoryFilter, limit, offset int) ([]*TransferRequest, int, error) {
	switch callerType {
	case "ems":
		return s.requests.ListAccepted(ctx, &emsUnitID, nil, f, limit, offset)
	case "hospital":
		return s.requests.ListAccepted(ctx, nil, &hospitalID, f, limit, offset)
	default:
		return nil, 0, ErrForbidden
	}
}

// GetTimeline returns one patient's full placement history for its owning
// EMS unit.
func (s *Service) GetTimeline(ctx context.Context, patientID, emsUnitID uuid.UUID) (*Timeline, error) {
	return s.TimelineFor(ctx, patientID, "ems", emsUnitID, uuid.Nil)
}

// TimelineFor returns the placement timeline for either party: the owning
// EMS unit, or a hospital holding one of the patient's requests.
func (s *Service) TimelineFor(ctx context.Context, patientID uuid.UUID, callerType string, emsUnitID, hospitalID uuid.UUID) (*Timeline, error) {
	p, err := s.patients.GetByID(ctx, patientID)
	if err != nil {
		return nil, err
	}
	reqs, err := s.requests.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}

	switch callerType {
	case "ems":
		if p.EMSUnitID != emsUnitID {
			return nil, ErrForbidden
		}
	case "hospital":
		involved := false
		for _, r := range reqs {
			if r.HospitalID == hospitalID {
				involved = true
				break
			}
		}
		if !involved {
			return nil, ErrForbidden
		}
	default:
		return nil, ErrForbidden
	}

	roomID, err := s.requests.RoomForPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}

	return &Timeline{Patient: p, Requests: reqs, ChatRoomID: roomID}, nil
}
