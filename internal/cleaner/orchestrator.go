package cleaner

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"clearmark/internal/capability"
	"clearmark/internal/domain"
	"clearmark/internal/frame"
	"clearmark/internal/genai"
	"clearmark/internal/i18n"
	"clearmark/internal/infra"
	"clearmark/internal/payload"
)

type imageEditor interface {
	CleanImage(ctx context.Context, src genai.InlinePayload) (*genai.EditedImage, error)
}

type videoRenderer interface {
	SubmitVideoJob(ctx context.Context, ref genai.InlinePayload) (*genai.VideoOperation, error)
	AwaitVideoJob(ctx context.Context, op *genai.VideoOperation, onPoll func(attempt int)) (*genai.VideoOperation, error)
	FetchVideo(ctx context.Context, uri string) (*genai.VideoResult, error)
}

type frameCapturer interface {
	FirstFrame(ctx context.Context, src io.Reader) (*frame.Frame, error)
}

type blobStore interface {
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Write(ctx context.Context, key string, data []byte) (string, error)
}

type runProgressStore interface {
	SaveProgress(ctx context.Context, id string, phase domain.Phase, message string, percent int, errMsg, resultAssetID string) error
	ParkAwaitingAccess(ctx context.Context, id, message string) error
}

type assetRecorder interface {
	Create(ctx context.Context, asset *domain.Asset) error
}

// OrchestratorOptions wires the orchestrator's collaborators.
type OrchestratorOptions struct {
	Runs       runProgressStore
	Assets     assetRecorder
	Store      blobStore
	Editor     imageEditor
	Renderer   videoRenderer
	Frames     frameCapturer
	Capability capability.Checker
	// Notify observes every applied snapshot (SSE fan-out, tests).
	Notify func(Snapshot)
	Logger *infra.Logger
}

// Orchestrator runs the cleaning pipeline for claimed runs. One run is in
// flight per orchestrator; a concurrent start is rejected with ErrRunActive.
type Orchestrator struct {
	machine    *Machine
	runs       runProgressStore
	assets     assetRecorder
	store      blobStore
	editor     imageEditor
	renderer   videoRenderer
	frames     frameCapturer
	capability capability.Checker
	logger     *infra.Logger
}

func NewOrchestrator(opts OrchestratorOptions) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &Orchestrator{
		machine:    NewMachine(opts.Notify),
		runs:       opts.Runs,
		assets:     opts.Assets,
		store:      opts.Store,
		editor:     opts.Editor,
		renderer:   opts.Renderer,
		frames:     opts.Frames,
		capability: opts.Capability,
		logger:     logger,
	}
}

// Snapshot exposes the machine state for health and debug surfaces.
func (o *Orchestrator) Snapshot() Snapshot {
	return o.machine.Snapshot()
}

// Process drives one claimed run to a settled state. The returned error is
// the run's failure cause; a run parked for a missing video grant returns
// nil. Starting while another run is processing returns domain.ErrRunActive.
func (o *Orchestrator) Process(ctx context.Context, run *domain.Run) error {
	if err := o.machine.Begin(run.ID, run.Kind, i18n.T(run.Locale, "run.queued")); err != nil {
		return err
	}
	o.persist(ctx, o.machine.Snapshot())

	var err error
	switch run.Kind {
	case domain.MediaVideo:
		err = o.processVideo(ctx, run)
	default:
		err = o.processImage(ctx, run)
	}
	if err != nil {
		o.fail(ctx, run, err)
		return err
	}
	return nil
}

func (o *Orchestrator) processImage(ctx context.Context, run *domain.Run) error {
	o.progress(ctx, run, 5, "run.reading_source")
	src, err := o.store.Open(ctx, run.SourceKey)
	if err != nil {
		return fmt.Errorf("cleaner: %w: %v", domain.ErrReadSource, err)
	}
	encoded, err := payload.Encode(src)
	src.Close()
	if err != nil {
		return err
	}

	o.progress(ctx, run, 30, "run.cleaning_image")
	edited, err := o.editor.CleanImage(ctx, genai.InlinePayload{
		Data: payload.StripDataURI(encoded),
		MIME: run.SourceMIME,
	})
	if err != nil {
		return err
	}

	o.progress(ctx, run, 80, "run.saving_result")
	asset, err := o.saveAsset(ctx, run, domain.AssetRoleCleaned, edited.Data, edited.MIME, 0, 0)
	if err != nil {
		return err
	}
	return o.succeed(ctx, run, asset.ID)
}

func (o *Orchestrator) processVideo(ctx context.Context, run *domain.Run) error {
	granted, err := o.capability.HasVideoAccess(ctx)
	if err != nil {
		return fmt.Errorf("cleaner: check video access: %w", err)
	}
	if !granted {
		// No remote call is made on this path. The run goes back to idle
		// without an error and waits for an operator grant.
		if err := o.capability.RequestVideoAccess(ctx); err != nil {
			return fmt.Errorf("cleaner: request video access: %w", err)
		}
		if err := o.machine.Park(run.ID, i18n.T(run.Locale, "run.awaiting_access")); err != nil {
			return err
		}
		o.persist(ctx, o.machine.Snapshot())
		o.logger.Info().Str("run_id", run.ID).Msg("cleaner: video access missing, run parked")
		return nil
	}

	o.progress(ctx, run, 5, "run.reading_source")
	src, err := o.store.Open(ctx, run.SourceKey)
	if err != nil {
		return fmt.Errorf("cleaner: %w: %v", domain.ErrReadSource, err)
	}

	o.progress(ctx, run, 10, "run.extracting_frame")
	still, err := o.frames.FirstFrame(ctx, src)
	src.Close()
	if err != nil {
		return err
	}
	if _, err := o.saveAsset(ctx, run, domain.AssetRoleFrame, still.Data, still.MIME, still.Width, still.Height); err != nil {
		return err
	}

	o.progress(ctx, run, 20, "run.cleaning_frame")
	encodedFrame, err := payload.Encode(bytes.NewReader(still.Data))
	if err != nil {
		return err
	}
	cleaned, err := o.editor.CleanImage(ctx, genai.InlinePayload{
		Data: payload.StripDataURI(encodedFrame),
		MIME: still.MIME,
	})
	if err != nil {
		return err
	}

	o.progress(ctx, run, 40, "run.rendering_video")
	encodedRef, err := payload.Encode(bytes.NewReader(cleaned.Data))
	if err != nil {
		return err
	}
	op, err := o.renderer.SubmitVideoJob(ctx, genai.InlinePayload{
		Data: encodedRef,
		MIME: cleaned.MIME,
	})
	if err != nil {
		return err
	}
	op, err = o.renderer.AwaitVideoJob(ctx, op, func(attempt int) {
		percent := 40 + 2*attempt
		if percent > 85 {
			percent = 85
		}
		o.progress(ctx, run, percent, "run.rendering_poll", attempt)
	})
	if err != nil {
		return err
	}

	o.progress(ctx, run, 90, "run.fetching_video")
	result, err := o.renderer.FetchVideo(ctx, op.URI)
	if err != nil {
		return err
	}

	o.progress(ctx, run, 95, "run.saving_result")
	asset, err := o.saveAsset(ctx, run, domain.AssetRoleCleaned, result.Data, result.MIME, 0, 0)
	if err != nil {
		return err
	}
	return o.succeed(ctx, run, asset.ID)
}

func (o *Orchestrator) saveAsset(ctx context.Context, run *domain.Run, role domain.AssetRole, data []byte, mime string, width, height int) (*domain.Asset, error) {
	name := "cleaned"
	if role == domain.AssetRoleFrame {
		name = "frame"
	}
	key := fmt.Sprintf("runs/%s/%s%s", run.ID, name, payload.Extension(mime))
	savedKey, err := o.store.Write(ctx, key, data)
	if err != nil {
		return nil, fmt.Errorf("cleaner: persist %s asset: %w", name, err)
	}

	kind := run.Kind
	if k, ok := payload.KindForMIME(mime); ok {
		kind = k
	}
	asset := &domain.Asset{
		ID:         uuid.NewString(),
		RunID:      run.ID,
		Kind:       kind,
		Role:       role,
		StorageKey: savedKey,
		MIME:       mime,
		Bytes:      int64(len(data)),
		Width:      width,
		Height:     height,
	}
	if err := o.assets.Create(ctx, asset); err != nil {
		return nil, fmt.Errorf("cleaner: record %s asset: %w", name, err)
	}
	return asset, nil
}

func (o *Orchestrator) progress(ctx context.Context, run *domain.Run, percent int, key string, args ...any) {
	if err := o.machine.Progress(run.ID, i18n.T(run.Locale, key, args...), percent); err != nil {
		o.logger.Error().Err(err).Str("run_id", run.ID).Msg("cleaner: progress rejected")
		return
	}
	o.persist(ctx, o.machine.Snapshot())
}

func (o *Orchestrator) succeed(ctx context.Context, run *domain.Run, resultAssetID string) error {
	if err := o.machine.Succeed(run.ID, i18n.T(run.Locale, "run.succeeded"), resultAssetID); err != nil {
		return err
	}
	o.persist(ctx, o.machine.Snapshot())
	o.logger.Info().Str("run_id", run.ID).Str("asset_id", resultAssetID).Msg("cleaner: run succeeded")
	return nil
}

func (o *Orchestrator) fail(ctx context.Context, run *domain.Run, cause error) {
	if err := o.machine.Fail(run.ID, i18n.T(run.Locale, "run.failed"), cause.Error()); err != nil {
		o.logger.Error().Err(err).Str("run_id", run.ID).Msg("cleaner: fail transition rejected")
		return
	}
	o.persist(ctx, o.machine.Snapshot())
	o.logger.Error().Err(cause).Str("run_id", run.ID).Msg("cleaner: run failed")
}

// persist mirrors the applied snapshot onto the run row. Parked snapshots go
// through ParkAwaitingAccess so the claim loop skips the run until access is
// granted.
func (o *Orchestrator) persist(ctx context.Context, snap Snapshot) {
	var err error
	if snap.AwaitingAccess && snap.Phase == domain.PhaseIdle {
		err = o.runs.ParkAwaitingAccess(ctx, snap.RunID, snap.Message)
	} else {
		err = o.runs.SaveProgress(ctx, snap.RunID, snap.Phase, snap.Message, snap.Percent, snap.Error, snap.ResultAssetID)
	}
	if err != nil {
		o.logger.Error().Err(err).Str("run_id", snap.RunID).Msg("cleaner: persist snapshot failed")
	}
}
