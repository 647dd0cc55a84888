package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"

	"github.com/frappe/release/pkg/domain/interfaces"
	"github.com/frappe/release/pkg/domain/model"
	"github.com/frappe/release/pkg/domain/types"
)

// ReleaseHandler exposes the release lifecycle over JSON endpoints
type ReleaseHandler struct {
	releaseUC interfaces.ReleaseUseCase
	pullUC    interfaces.PullRequestUseCase
}

// NewReleaseHandler creates a new ReleaseHandler
func NewReleaseHandler(releaseUC interfaces.ReleaseUseCase, pullUC interfaces.PullRequestUseCase) *ReleaseHandler {
	return &ReleaseHandler{
		releaseUC: releaseUC,
		pullUC:    pullUC,
	}
}

// Routes mounts every release and pull request endpoint
func (h *ReleaseHandler) Routes(r chi.Router) {
	r.Route("/releases", func(r chi.Router) {
		r.Post("/", h.create)
		r.Route("/{releaseID}", func(r chi.Router) {
			r.Get("/", h.get)
			r.Post("/validate", h.validate)
			r.Post("/reset-info", h.resetInfo)
			r.Post("/process-prs", h.processPullRequests)
			r.Post("/raise-pr", h.raisePR)
			r.Post("/submit", h.submit)
			r.Post("/cancel", h.cancel)
			r.Get("/notes", h.notes)
			r.Get("/branches", h.branches)
			r.Get("/pull-requests", h.listPulls)
			r.Post("/pull-requests", h.createPull)
		})
	})
	r.Route("/pull-requests/{pullID}", func(r chi.Router) {
		r.Get("/", h.getPull)
		r.Patch("/", h.updatePull)
		r.Post("/submit", h.submitPull)
	})
}

type createReleaseRequest struct {
	GitURL           string `json:"git_url"`
	StableBranch     string `json:"stable_branch"`
	PreReleaseBranch string `json:"pre_release_branch"`
	ReleaseType      string `json:"release_type"`
}

func (h *ReleaseHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createReleaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, goerr.Wrap(err, "invalid JSON body", goerr.T(types.TagValidation)))
		return
	}

	rel, err := h.releaseUC.Create(r.Context(), req.GitURL, req.StableBranch, req.PreReleaseBranch,
		model.ReleaseType(req.ReleaseType))
	if err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, rel)
}

func (h *ReleaseHandler) get(w http.ResponseWriter, r *http.Request) {
	rel, err := h.releaseUC.Get(r.Context(), chi.URLParam(r, "releaseID"))
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rel)
}

func (h *ReleaseHandler) validate(w http.ResponseWriter, r *http.Request) {
	rel, err := h.releaseUC.Validate(r.Context(), chi.URLParam(r, "releaseID"))
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rel)
}

func (h *ReleaseHandler) resetInfo(w http.ResponseWriter, r *http.Request) {
	rel, err := h.releaseUC.ResetReleaseInfo(r.Context(), chi.URLParam(r, "releaseID"))
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rel)
}

func (h *ReleaseHandler) processPullRequests(w http.ResponseWriter, r *http.Request) {
	releaseID := chi.URLParam(r, "releaseID")
	if err := h.releaseUC.ProcessPullRequests(r.Context(), releaseID); err != nil {
		respondError(w, err)
		return
	}

	ctxlog.From(r.Context()).Info("Accepted PR processing run", "release", releaseID)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": string(model.StatusProcessingPRs)})
}

type raisePRRequest struct {
	AuthorName  string `json:"author_name"`
	AuthorEmail string `json:"author_email"`
}

func (h *ReleaseHandler) raisePR(w http.ResponseWriter, r *http.Request) {
	var req raisePRRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, goerr.Wrap(err, "invalid JSON body", goerr.T(types.TagValidation)))
		return
	}

	rel, err := h.releaseUC.RaisePRForRelease(r.Context(), chi.URLParam(r, "releaseID"),
		model.CommitAuthor{Name: req.AuthorName, Email: req.AuthorEmail})
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rel)
}

func (h *ReleaseHandler) submit(w http.ResponseWriter, r *http.Request) {
	rel, err := h.releaseUC.Submit(r.Context(), chi.URLParam(r, "releaseID"))
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rel)
}

func (h *ReleaseHandler) cancel(w http.ResponseWriter, r *http.Request) {
	rel, err := h.releaseUC.Cancel(r.Context(), chi.URLParam(r, "releaseID"))
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rel)
}

func (h *ReleaseHandler) notes(w http.ResponseWriter, r *http.Request) {
	format := model.NotesMarkdown
	if r.URL.Query().Get("format") == string(model.NotesCSV) {
		format = model.NotesCSV
	}

	summary, err := h.releaseUC.ComposeNotes(r.Context(), chi.URLParam(r, "releaseID"), format)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"summary": summary})
}

func (h *ReleaseHandler) branches(w http.ResponseWriter, r *http.Request) {
	branches, err := h.releaseUC.ListBranches(r.Context(), chi.URLParam(r, "releaseID"))
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"branches": branches})
}

func (h *ReleaseHandler) listPulls(w http.ResponseWriter, r *http.Request) {
	pulls, err := h.pullUC.ListByRelease(r.Context(), chi.URLParam(r, "releaseID"))
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pulls)
}

type createPullRequestBody struct {
	Number string `json:"number"`
	Title  string `json:"title"`
	Link   string `json:"link"`
}

func (h *ReleaseHandler) createPull(w http.ResponseWriter, r *http.Request) {
	var req createPullRequestBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, goerr.Wrap(err, "invalid JSON body", goerr.T(types.TagValidation)))
		return
	}

	pr, err := h.pullUC.Create(r.Context(), chi.URLParam(r, "releaseID"), model.PullMeta{
		Number: req.Number,
		Title:  req.Title,
		Link:   req.Link,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, pr)
}

func (h *ReleaseHandler) getPull(w http.ResponseWriter, r *http.Request) {
	pr, err := h.pullUC.Get(r.Context(), chi.URLParam(r, "pullID"))
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pr)
}

type updatePullRequestBody struct {
	Status      *string `json:"status,omitempty"`
	Description *string `json:"description,omitempty"`
}

func (h *ReleaseHandler) updatePull(w http.ResponseWriter, r *http.Request) {
	var req updatePullRequestBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, goerr.Wrap(err, "invalid JSON body", goerr.T(types.TagValidation)))
		return
	}
	if req.Status == nil && req.Description == nil {
		respondError(w, goerr.New("nothing to update: provide status or description",
			goerr.T(types.TagValidation)))
		return
	}

	pullID := chi.URLParam(r, "pullID")

	var pr *model.PullRequest
	var err error
	if req.Description != nil {
		if pr, err = h.pullUC.SetDescription(r.Context(), pullID, *req.Description); err != nil {
			respondError(w, err)
			return
		}
	}
	if req.Status != nil {
		if pr, err = h.pullUC.SetStatus(r.Context(), pullID, model.TestStatus(*req.Status)); err != nil {
			respondError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, pr)
}

func (h *ReleaseHandler) submitPull(w http.ResponseWriter, r *http.Request) {
	pr, err := h.pullUC.Submit(r.Context(), chi.URLParam(r, "pullID"))
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pr)
}
