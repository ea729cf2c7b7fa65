package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"kb-auditor/internal/app"
	"kb-auditor/internal/events"
	"kb-auditor/internal/httputil"
	"kb-auditor/internal/kb"
	"kb-auditor/internal/llm"
	"kb-auditor/internal/pairing"
	"kb-auditor/internal/payload"
	"kb-auditor/internal/prompt"
	"kb-auditor/internal/provider"
	"kb-auditor/internal/render"
	"kb-auditor/internal/workbench"
)

const (
	multipartMemory   = 32 << 20
	shutdownTimeout   = 10 * time.Second
	readOnlyMessage   = "Knowledge base storage is read-only. To save changes permanently, use a different persistence backend."
	missingKeyMessage = "OPENAI_API_KEY environment variable is not set on the server."
)

type saveKBRequest struct {
	Content *string `json:"content" validate:"required"`
}

type settingsRequest struct {
	View        *string `json:"view" validate:"omitempty,oneof=audit ingest update kb"`
	Model       *string `json:"model" validate:"omitempty,min=1"`
	Instruction *string `json:"instruction"`
}

type runRequest struct {
	Mode        string `json:"mode" validate:"required"`
	Model       string `json:"model"`
	Instruction string `json:"instruction"`
}

type runResponse struct {
	ID    string      `json:"id"`
	Mode  prompt.Mode `json:"mode"`
	Model string      `json:"model"`
	Text  string      `json:"text"`
	HTML  string      `json:"html,omitempty"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := app.Build(ctx)
	if err != nil {
		slog.Default().Error("failed to build dependencies", "err", err)
		os.Exit(1)
	}
	defer func() {
		if err := deps.Close(); err != nil {
			deps.Log.Warn("failed to close dependencies", "err", err)
		}
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", deps.Config.Port),
		Handler:           newRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		deps.Log.Info("server listening", "addr", srv.Addr, "kb_path", deps.KBPath)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if deps.Config.KBWatch {
		g.Go(func() error {
			return kb.Watch(gctx, deps.Log, deps.KBPath, func(op string) {
				events.Emit(gctx, deps.Events, events.TypeKBChanged, events.KBPayload{Source: "watch", Op: op}, func(err error) {
					deps.Log.Warn("failed to publish kb event", "err", err)
				})
			})
		})
	}

	if err := g.Wait(); err != nil {
		deps.Log.Error("server failed", "err", err)
		os.Exit(1)
	}
	deps.Log.Info("server stopped")
}

func newRouter(deps app.Deps) http.Handler {
	r := httputil.NewRouter(deps.Log, deps.Config.RequestTimeout)

	r.Get("/api/kb", getKBHandler(deps))
	r.Post("/api/kb", saveKBHandler(deps))
	r.Post(llm.RelayPath, relayHandler(deps))

	r.Get("/api/workbench", snapshotHandler(deps))
	r.Put("/api/workbench", settingsHandler(deps))
	r.Post("/api/workbench/files", addFilesHandler(deps))
	r.Delete("/api/workbench/pairs", clearPairsHandler(deps))
	r.Delete("/api/workbench/pairs/{stem}", removePairHandler(deps))
	r.Post("/api/workbench/reference", setReferenceHandler(deps))
	r.Delete("/api/workbench/reference", clearReferenceHandler(deps))
	r.Post("/api/workbench/run", runHandler(deps))
	r.Post("/api/workbench/apply", applyHandler(deps))

	r.Get("/healthz", httputil.HealthHandler(deps.Log))
	return r
}

func getKBHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		text, err := deps.KB.Load(r.Context())
		if err != nil {
			httputil.Fail(deps.Log, w, "Failed to read Knowledge Base", err, http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		if _, err := io.WriteString(w, text); err != nil {
			deps.Log.Warn("failed to write knowledge base", "err", err)
		}
	}
}

func saveKBHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, deps.Config.MaxRequestSize)
		var req saveKBRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			failDecode(deps, w, err)
			return
		}
		if err := httputil.Validator.Struct(&req); err != nil {
			httputil.ValidationError(deps.Log, w, err)
			return
		}

		if err := deps.KB.Save(r.Context(), *req.Content); err != nil {
			failSave(deps, w, err)
			return
		}
		events.Emit(r.Context(), deps.Events, events.TypeKBSaved, events.KBPayload{Source: "api", Bytes: len(*req.Content)}, func(err error) {
			deps.Log.Warn("failed to publish kb event", "err", err)
		})
		httputil.WriteJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"message": "Saved successfully.",
		})
	}
}

func relayHandler(deps app.Deps) http.HandlerFunc {
	limit := deps.Config.MaxRequestSize

	return func(w http.ResponseWriter, r *http.Request) {
		if deps.OpenAI == nil {
			httputil.Fail(deps.Log, w, missingKeyMessage, llm.ErrMissingCredential, http.StatusInternalServerError)
			return
		}
		if r.ContentLength > limit {
			httputil.Fail(deps.Log, w, tooLargeMessage(limit), nil, http.StatusRequestEntityTooLarge)
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, limit)

		var req llm.RelayRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			failDecode(deps, w, err)
			return
		}
		if err := httputil.Validator.Struct(&req); err != nil {
			httputil.ValidationError(deps.Log, w, err)
			return
		}
		if req.Model == "" {
			req.Model = llm.DefaultOpenAIModel
		}

		text, err := deps.OpenAI.Complete(r.Context(), req.Model, req.SystemInstruction, req.Prompt)
		if err != nil {
			status, message := evaluationStatus(err)
			if errors.Is(err, llm.ErrPayloadTooLarge) {
				message = tooLargeMessage(limit)
			}
			httputil.Fail(deps.Log.With("model", req.Model), w, message, err, status)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, llm.RelayResponse{Text: text})
	}
}

func snapshotHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, deps.Workbench.Snapshot())
	}
}

func settingsHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req settingsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			failDecode(deps, w, err)
			return
		}
		if err := httputil.Validator.Struct(&req); err != nil {
			httputil.ValidationError(deps.Log, w, err)
			return
		}
		if req.View != nil {
			deps.Workbench.SetView(workbench.View(*req.View))
		}
		if req.Model != nil {
			deps.Workbench.SetModel(*req.Model)
		}
		if req.Instruction != nil {
			deps.Workbench.SetInstruction(*req.Instruction)
		}
		httputil.WriteJSON(w, http.StatusOK, deps.Workbench.Snapshot())
	}
}

func clearPairsHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deps.Workbench.ClearPairs()
		httputil.WriteJSON(w, http.StatusOK, deps.Workbench.Snapshot())
	}
}

func addFilesHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		form, ok := parseMultipart(deps, w, r)
		if !ok {
			return
		}
		headers := form.File["files"]
		if len(headers) == 0 {
			httputil.Fail(deps.Log, w, "files are required", nil, http.StatusBadRequest)
			return
		}
		files := make([]payload.File, 0, len(headers))
		for _, fh := range headers {
			f, err := readFile(fh)
			if err != nil {
				httputil.Fail(deps.Log, w, "failed to read file", err, http.StatusBadRequest)
				return
			}
			files = append(files, f)
		}
		accepted := deps.Workbench.AddFiles(files...)
		deps.Log.Info("files added", "received", len(files), "accepted", accepted)
		httputil.WriteJSON(w, http.StatusOK, deps.Workbench.Snapshot())
	}
}

func removePairHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stem := chi.URLParam(r, "stem")
		if !deps.Workbench.RemovePair(stem) {
			httputil.Fail(deps.Log, w, fmt.Sprintf("no pair named %q", stem), nil, http.StatusNotFound)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, deps.Workbench.Snapshot())
	}
}

func setReferenceHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		form, ok := parseMultipart(deps, w, r)
		if !ok {
			return
		}
		headers := form.File["file"]
		if len(headers) == 0 {
			httputil.Fail(deps.Log, w, "file is required", nil, http.StatusBadRequest)
			return
		}
		f, err := readFile(headers[0])
		if err != nil {
			httputil.Fail(deps.Log, w, "failed to read file", err, http.StatusBadRequest)
			return
		}
		if err := deps.Workbench.SetReference(f); err != nil {
			httputil.Fail(deps.Log, w, err.Error(), err, http.StatusBadRequest)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, deps.Workbench.Snapshot())
	}
}

func clearReferenceHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deps.Workbench.ClearReference()
		httputil.WriteJSON(w, http.StatusOK, deps.Workbench.Snapshot())
	}
}

func runHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req runRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			failDecode(deps, w, err)
			return
		}
		if err := httputil.Validator.Struct(&req); err != nil {
			httputil.ValidationError(deps.Log, w, err)
			return
		}

		res, err := deps.Workbench.Run(r.Context(), workbench.RunRequest{
			Mode:        prompt.Mode(req.Mode),
			Model:       req.Model,
			Instruction: req.Instruction,
		})
		if err != nil {
			status, message := evaluationStatus(err)
			httputil.Fail(deps.Log.With("mode", req.Mode, "model", req.Model), w, message, err, status)
			return
		}

		out := runResponse{ID: res.ID.String(), Mode: res.Mode, Model: res.Model, Text: res.Text}
		if html, err := render.Markdown(res.Text); err != nil {
			deps.Log.Warn("failed to render result", "err", err)
		} else {
			out.HTML = html
		}
		httputil.WriteJSON(w, http.StatusOK, out)
	}
}

func applyHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		content, err := deps.Workbench.Apply(r.Context())
		switch {
		case errors.Is(err, workbench.ErrNothingToApply):
			httputil.Fail(deps.Log, w, err.Error(), err, http.StatusConflict)
			return
		case err != nil:
			failSave(deps, w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"content": content,
		})
	}
}

// evaluationStatus maps a run or relay failure to a status code and the
// message shown to the client.
func evaluationStatus(err error) (int, string) {
	var pe *llm.ProviderError
	switch {
	case errors.Is(err, workbench.ErrBusy):
		return http.StatusConflict, err.Error()
	case errors.Is(err, workbench.ErrNotRunnable),
		errors.Is(err, prompt.ErrUnknownMode),
		errors.Is(err, provider.ErrUnsupportedModel):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, provider.ErrNotImplemented):
		return http.StatusNotImplemented, err.Error()
	case errors.Is(err, llm.ErrMissingCredential):
		return http.StatusInternalServerError, err.Error()
	case errors.Is(err, llm.ErrPayloadTooLarge):
		return http.StatusRequestEntityTooLarge, err.Error()
	case errors.As(err, &pe):
		if pe.Message == "" {
			return http.StatusBadGateway, "Failed to communicate with " + pe.Provider
		}
		return http.StatusBadGateway, pe.Message
	default:
		return http.StatusInternalServerError, err.Error()
	}
}

func failSave(deps app.Deps, w http.ResponseWriter, err error) {
	if errors.Is(err, kb.ErrReadOnly) {
		httputil.Fail(deps.Log, w, readOnlyMessage, err, http.StatusForbidden)
		return
	}
	httputil.Fail(deps.Log, w, "Failed to write Knowledge Base", err, http.StatusInternalServerError)
}

func failDecode(deps app.Deps, w http.ResponseWriter, err error) {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		httputil.Fail(deps.Log, w, tooLargeMessage(mbe.Limit), err, http.StatusRequestEntityTooLarge)
		return
	}
	httputil.Fail(deps.Log, w, "invalid payload", err, http.StatusBadRequest)
}

func tooLargeMessage(limit int64) string {
	return fmt.Sprintf("Payload too large. The maximum request size is %dMB.", limit>>20)
}

func parseMultipart(deps app.Deps, w http.ResponseWriter, r *http.Request) (*multipart.Form, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, deps.Config.MaxRequestSize)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		failDecode(deps, w, err)
		return nil, false
	}
	return r.MultipartForm, true
}

func readFile(fh *multipart.FileHeader) (payload.File, error) {
	f, err := fh.Open()
	if err != nil {
		return payload.File{}, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return payload.File{}, err
	}
	return payload.File{
		Name:     pairing.DisplayName(fh.Filename),
		MIMEType: fh.Header.Get("Content-Type"),
		Data:     data,
	}, nil
}
