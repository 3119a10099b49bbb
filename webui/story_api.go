package webui

import (
	"cmp"
	"encoding/json"
	"net/http"
	"slices"
	"strconv"

	"go.uber.org/zap"

	"storybook/composer"
	"storybook/imagegen"
	"storybook/pipeline"
	"storybook/session"
	"storybook/story"
)

// PagesHeader carries the per-page composition summary of a PDF response.
const PagesHeader = "X-Story-Pages"

// StoryAPI serves the story editing endpoints. Every /api/story route acts
// on the caller's cookie-bound session.
type StoryAPI struct {
	pipeline    *pipeline.Pipeline
	sessions    sessionBinder
	limiter     *RateLimiter
	broadcaster *Broadcaster
	logger      *zap.Logger
}

// NewStoryAPI wires the handlers. broadcaster may be nil.
func NewStoryAPI(p *pipeline.Pipeline, store *session.Store, limiter *RateLimiter, broadcaster *Broadcaster, secureCookies bool, logger *zap.Logger) *StoryAPI {
	if logger == nil {
		logger = zap.NewNop()
	}
	if limiter == nil {
		limiter = NewRateLimiter(0, 0, 0)
	}
	return &StoryAPI{
		pipeline:    p,
		sessions:    sessionBinder{store: store, secure: secureCookies},
		limiter:     limiter,
		broadcaster: broadcaster,
		logger:      logger.With(zap.String("component", "story_api")),
	}
}

// RegisterRoutes registers the story, stateless and WebSocket routes.
func (api *StoryAPI) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/story", api.HandleSynthesize)
	mux.HandleFunc("GET /api/story", api.HandleGetStory)
	mux.HandleFunc("PUT /api/story/scenes/{index}/prompt", api.HandleSetPrompt)
	mux.HandleFunc("POST /api/story/scenes/{index}/image", api.HandleGenerateImage)
	mux.HandleFunc("POST /api/story/images", api.HandleGenerateAll)
	mux.HandleFunc("GET /api/story/document", api.HandleExport)
	mux.HandleFunc("POST /api/images", api.HandleAcquireImage)
	mux.HandleFunc("POST /api/documents", api.HandleComposeDocument)
	mux.HandleFunc("GET /ws", api.HandleWebSocket)
}

// StoryRequest is the body of POST /api/story. An omitted scene_count
// uses the default; an explicit 0 is rejected.
type StoryRequest struct {
	Idea       string `json:"idea"`
	Genre      string `json:"genre"`
	Tone       string `json:"tone"`
	Audience   string `json:"audience"`
	SceneCount *int   `json:"scene_count"`
	ArtStyle   string `json:"art_style"`
}

// Params converts the request to story parameters.
func (req StoryRequest) Params() story.Params {
	count := story.DefaultSceneCount
	if req.SceneCount != nil {
		count = *req.SceneCount
	}
	return story.Params{
		Idea:       req.Idea,
		Genre:      story.Genre(req.Genre),
		Tone:       story.Tone(req.Tone),
		Audience:   story.Audience(req.Audience),
		SceneCount: count,
		ArtStyle:   story.ArtStyle(req.ArtStyle),
	}
}

// StoryResponse lists a session's scenes.
type StoryResponse struct {
	SessionID string      `json:"session_id"`
	Scenes    []SceneJSON `json:"scenes"`
	// Clamped is set when more scenes were requested than exist.
	Clamped bool `json:"clamped,omitempty"`
}

// HandleSynthesize handles POST /api/story.
func (api *StoryAPI) HandleSynthesize(w http.ResponseWriter, r *http.Request) {
	sess, ok := api.session(w, r)
	if !ok {
		return
	}
	var req StoryRequest
	if !decodeBody(w, r, &req) {
		return
	}

	params := req.Params()
	scenes, err := api.pipeline.Synthesize(sess, params)
	if err != nil {
		writeFailure(w, api.logger, err)
		return
	}

	encoded := EncodeScenes(scenes, false)
	api.publish(NewWSMessage(sess.ID(), MessageTypeStoryReplaced, StoryReplacedData{Scenes: encoded}))
	writeJSON(w, http.StatusCreated, StoryResponse{
		SessionID: sess.ID(),
		Scenes:    encoded,
		Clamped:   params.Clamped(),
	})
}

// HandleGetStory handles GET /api/story. ?images=1 inlines images as data
// URLs.
func (api *StoryAPI) HandleGetStory(w http.ResponseWriter, r *http.Request) {
	sess, ok := api.session(w, r)
	if !ok {
		return
	}
	withImages, _ := strconv.ParseBool(r.URL.Query().Get("images"))
	writeJSON(w, http.StatusOK, StoryResponse{
		SessionID: sess.ID(),
		Scenes:    EncodeScenes(sess.Scenes(), withImages),
	})
}

// PromptRequest is the body of the prompt edit endpoint.
type PromptRequest struct {
	Prompt string `json:"prompt"`
}

// HandleSetPrompt handles PUT /api/story/scenes/{index}/prompt.
func (api *StoryAPI) HandleSetPrompt(w http.ResponseWriter, r *http.Request) {
	index, ok := sceneIndex(w, r)
	if !ok {
		return
	}
	sess, ok := api.session(w, r)
	if !ok {
		return
	}
	var req PromptRequest
	if !decodeBody(w, r, &req) {
		return
	}

	sc, err := api.pipeline.EditPrompt(sess, index, req.Prompt)
	if err != nil {
		writeFailure(w, api.logger, err)
		return
	}
	encoded := EncodeScene(sc, false)
	api.publish(NewWSMessage(sess.ID(), MessageTypeSceneUpdated, SceneUpdatedData{Scene: encoded}))
	writeJSON(w, http.StatusOK, encoded)
}

// ImageResponse is the result of a single-scene acquisition.
type ImageResponse struct {
	Scene   SceneJSON   `json:"scene"`
	Outcome OutcomeJSON `json:"outcome"`
}

// HandleGenerateImage handles POST /api/story/scenes/{index}/image. An
// acquisition failure is a 200 with the failure in the outcome.
func (api *StoryAPI) HandleGenerateImage(w http.ResponseWriter, r *http.Request) {
	index, ok := sceneIndex(w, r)
	if !ok {
		return
	}
	sess, ok := api.session(w, r)
	if !ok {
		return
	}
	if !api.allow(w, sess.ID()) {
		return
	}

	out, err := api.pipeline.GenerateImage(r.Context(), sess, index)
	if err != nil {
		writeFailure(w, api.logger, err)
		return
	}
	sc, err := sess.Scene(index)
	if err != nil {
		writeFailure(w, api.logger, err)
		return
	}

	resp := ImageResponse{Scene: EncodeScene(sc, false), Outcome: EncodeOutcome(out)}
	api.publish(NewWSMessage(sess.ID(), MessageTypeSceneUpdated, SceneUpdatedData{Scene: resp.Scene, Outcome: &resp.Outcome}))
	writeJSON(w, http.StatusOK, resp)
}

// BatchResponse lists batch outcomes in index order.
type BatchResponse struct {
	Outcomes []OutcomeJSON `json:"outcomes"`
	Failed   int           `json:"failed"`
}

// HandleGenerateAll handles POST /api/story/images. It runs the whole
// batch inside the request and pushes a progress event per scene.
func (api *StoryAPI) HandleGenerateAll(w http.ResponseWriter, r *http.Request) {
	sess, ok := api.session(w, r)
	if !ok {
		return
	}
	if !api.allow(w, sess.ID()) {
		return
	}

	outcomes, err := api.pipeline.GenerateAll(r.Context(), sess, func(p pipeline.Progress) {
		api.publish(NewWSMessage(sess.ID(), MessageTypeProgress, ProgressData{
			Completed: p.Completed,
			Total:     p.Total,
			Outcome:   EncodeOutcome(p.Outcome),
		}))
	})
	if err != nil {
		writeFailure(w, api.logger, err)
		return
	}

	resp := BatchResponse{Outcomes: make([]OutcomeJSON, len(outcomes))}
	for i, o := range outcomes {
		resp.Outcomes[i] = EncodeOutcome(o)
		if !o.OK() {
			resp.Failed++
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleExport handles GET /api/story/document.
func (api *StoryAPI) HandleExport(w http.ResponseWriter, r *http.Request) {
	sess, ok := api.session(w, r)
	if !ok {
		return
	}
	doc, err := api.pipeline.Export(sess)
	if err != nil {
		writeFailure(w, api.logger, err)
		return
	}
	writePDF(w, doc)
}

// AcquireRequest is the body of the stateless image endpoint.
type AcquireRequest struct {
	Prompt string `json:"prompt"`
}

// HandleAcquireImage handles POST /api/images. It does not touch any
// session.
func (api *StoryAPI) HandleAcquireImage(w http.ResponseWriter, r *http.Request) {
	var req AcquireRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if !api.allow(w, "addr:"+getClientIP(r)) {
		return
	}

	res := api.pipeline.AcquireImage(r.Context(), req.Prompt)
	if !res.OK() {
		writeJSON(w, acquisitionStatus(res.Failure.Code), ErrorResponse{Error: ErrorBody{
			Code:    string(res.Failure.Code),
			Message: res.Failure.Cause,
		}})
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(res.Image)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Image)
}

// acquisitionStatus maps a failure code for the stateless endpoint: bad
// prompts are the caller's fault, a stopping server is temporary, and
// everything else is an upstream model failure.
func acquisitionStatus(code imagegen.Code) int {
	switch code {
	case imagegen.CodeInvalidPrompt:
		return http.StatusBadRequest
	case imagegen.CodeShuttingDown:
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

// ComposeRequest is the body of the stateless document endpoint.
type ComposeRequest struct {
	Scenes []SceneJSON `json:"scenes"`
}

// HandleComposeDocument handles POST /api/documents.
func (api *StoryAPI) HandleComposeDocument(w http.ResponseWriter, r *http.Request) {
	var req ComposeRequest
	if !decodeBody(w, r, &req) {
		return
	}

	scenes := make([]story.Scene, 0, len(req.Scenes))
	for _, sj := range req.Scenes {
		sc, err := sj.Decode()
		if err != nil {
			writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
			return
		}
		scenes = append(scenes, sc)
	}
	// Any order is accepted, but the indices must be 1..n without repeats.
	if len(scenes) > 0 {
		slices.SortStableFunc(scenes, func(a, b story.Scene) int {
			return cmp.Compare(a.Index, b.Index)
		})
		if err := session.ValidateScenes(scenes); err != nil {
			writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
			return
		}
	}

	doc, err := api.pipeline.ComposeDocument(scenes)
	if err != nil {
		writeFailure(w, api.logger, err)
		return
	}
	writePDF(w, doc)
}

// HandleWebSocket handles GET /ws for the caller's session.
func (api *StoryAPI) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if api.broadcaster == nil {
		writeError(w, http.StatusNotFound, CodeNotFound, "progress events are disabled")
		return
	}
	sess, ok := api.session(w, r)
	if !ok {
		return
	}
	api.broadcaster.ServeSession(w, r, sess.ID())
}

// pageSummary is the compact per-page entry of PagesHeader.
type pageSummary struct {
	Index     int    `json:"i"`
	Image     string `json:"img"`
	Lines     int    `json:"lines"`
	Truncated int    `json:"cut,omitempty"`
	Missing   int    `json:"missing,omitempty"`
}

func writePDF(w http.ResponseWriter, doc composer.Document) {
	pages := make([]pageSummary, len(doc.Pages))
	for i, p := range doc.Pages {
		pages[i] = pageSummary{Index: p.Index, Image: string(p.Image), Lines: p.LinesDrawn, Truncated: p.LinesTruncated, Missing: p.MissingGlyphs}
	}
	if summary, err := json.Marshal(pages); err == nil {
		w.Header().Set(PagesHeader, string(summary))
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="story.pdf"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(doc.Bytes)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc.Bytes)
}

func (api *StoryAPI) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := api.sessions.bind(w, r)
	if err != nil {
		api.logger.Error("failed to bind session", zap.Error(err))
		writeError(w, http.StatusInternalServerError, CodeInternal, "could not create session")
		return nil, false
	}
	return sess, true
}

func (api *StoryAPI) allow(w http.ResponseWriter, key string) bool {
	ok, retry := api.limiter.Allow(key)
	if ok {
		return true
	}
	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(retry)))
	writeError(w, http.StatusTooManyRequests, CodeRateLimited, "too many image requests, retry later")
	return false
}

func (api *StoryAPI) publish(msg WSMessage) {
	if api.broadcaster != nil {
		api.broadcaster.Publish(msg)
	}
}

func sceneIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "scene index must be an integer")
		return 0, false
	}
	return index, true
}
