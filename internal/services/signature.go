package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"psyeval/internal/apperrors"
	"psyeval/internal/events"
	"psyeval/internal/models"
	"psyeval/internal/repository"
	"psyeval/internal/storage"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// artifactRetries bounds how many alternate filenames Sign tries when the
// store already holds an object at the generated path.
const artifactRetries = 3

// SignatureService is the signature gate: stroke validation, optional
// artifact upload and the idempotent signature insert.
type SignatureService struct {
	log         *zap.Logger
	signatures  *repository.SignatureRepo
	attempts    *repository.AttemptRepo
	cases       *repository.CaseRepo
	store       storage.ObjectStore
	bus         events.Bus
	minStrokePx int
}

func NewSignatureService(
	log *zap.Logger,
	signatures *repository.SignatureRepo,
	attempts *repository.AttemptRepo,
	cases *repository.CaseRepo,
	store storage.ObjectStore,
	bus events.Bus,
	minStrokePx int,
) *SignatureService {
	if minStrokePx <= 0 {
		minStrokePx = 40
	}
	return &SignatureService{
		log:         log,
		signatures:  signatures,
		attempts:    attempts,
		cases:       cases,
		store:       store,
		bus:         bus,
		minStrokePx: minStrokePx,
	}
}

// SignInput is one signing request for an attempt.
type SignInput struct {
	SignerRole     string
	StrokeLengthPx int
	Image          []byte
	ImageMime      string
}

// Sign validates the stroke, resolves the patient through the attempt's
// case, uploads the artifact when one was captured and inserts the
// signature row. A repeated sign by the same role returns the stored row as
// success.
func (s *SignatureService) Sign(ctx context.Context, intentoID uuid.UUID, in SignInput) (*models.Signature, error) {
	if in.SignerRole != models.SignerPaciente && in.SignerRole != models.SignerOperador {
		return nil, apperrors.Validation("unknown signer role %q", in.SignerRole)
	}
	if in.StrokeLengthPx < s.minStrokePx {
		return nil, apperrors.Validation("signature stroke too short (%dpx, minimum %dpx)", in.StrokeLengthPx, s.minStrokePx)
	}

	attempt, err := s.attempts.ByID(ctx, intentoID)
	if err != nil {
		return nil, translateNotFound(err, "attempt not found")
	}
	c, err := s.cases.ByID(ctx, attempt.CasoID)
	if err != nil {
		return nil, translateNotFound(err, "case not found")
	}

	var path *string
	if len(in.Image) > 0 {
		p, err := s.uploadArtifact(ctx, intentoID, in)
		if err != nil {
			return nil, err
		}
		path = &p
	}

	sig := &models.Signature{
		IntentoID:  intentoID,
		FirmadoPor: in.SignerRole,
		PacienteID: c.PacienteID,
		FirmaMime:  in.ImageMime,
		FirmaPath:  path,
	}
	stored, err := s.signatures.InsertIdempotent(ctx, sig)
	if err != nil {
		return nil, err
	}

	ev := events.CaseEvent{
		CasoID:   attempt.CasoID,
		PruebaID: &attempt.PruebaID,
		Tipo:     events.EventFirmaRegistrada,
		At:       time.Now().UTC(),
	}
	if err := s.bus.Publish(ctx, ev); err != nil {
		s.log.Warn("Failed to publish signature event", zap.Error(err))
	}
	return stored, nil
}

// uploadArtifact stores the signature image without upsert: an existing
// object means another path must be tried, never an overwrite. Only the
// already-exists conflict is retried; permission failures get their own
// message and everything else aborts as-is.
func (s *SignatureService) uploadArtifact(ctx context.Context, intentoID uuid.UUID, in SignInput) (string, error) {
	mime := in.ImageMime
	if mime == "" {
		mime = "image/png"
	}
	for i := 0; i < artifactRetries; i++ {
		path := artifactPath(intentoID, in.SignerRole, i)
		err := s.store.Put(ctx, path, in.Image, mime, false)
		if err == nil {
			return path, nil
		}
		if errors.Is(err, apperrors.ErrConflict) {
			s.log.Debug("Signature artifact path taken, retrying",
				zap.String("path", path),
				zap.Int("try", i+1),
			)
			continue
		}
		if errors.Is(err, apperrors.ErrPermissionDenied) {
			return "", apperrors.PermissionDenied("no permission to store the signature artifact")
		}
		return "", err
	}
	return "", apperrors.Conflict("could not find a free artifact path after %d tries", artifactRetries)
}

// Signatures returns every stored signature of an attempt.
func (s *SignatureService) Signatures(ctx context.Context, intentoID uuid.UUID) ([]models.Signature, error) {
	return s.signatures.ForAttempt(ctx, intentoID)
}

// FullySigned reports whether both required roles have signed the attempt.
func (s *SignatureService) FullySigned(ctx context.Context, intentoID uuid.UUID) (bool, error) {
	sigs, err := s.signatures.ForAttempt(ctx, intentoID)
	if err != nil {
		return false, err
	}
	roles := map[string]bool{}
	for _, sig := range sigs {
		roles[sig.FirmadoPor] = true
	}
	return roles[models.SignerPaciente] && roles[models.SignerOperador], nil
}

func artifactPath(intentoID uuid.UUID, role string, try int) string {
	if try == 0 {
		return fmt.Sprintf("firmas/%s/%s.png", intentoID, role)
	}
	return fmt.Sprintf("firmas/%s/%s-%d.png", intentoID, role, try)
}
