package handler

import (
	"bytes"
	"net/http"
	"os"

	"github.com/foomo/helpboard/pkg/repo"
	"github.com/foomo/helpboard/post"
	"github.com/foomo/helpboard/requests"
	"github.com/foomo/helpboard/responses"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

func (h *HTTP) getCategories(_ http.ResponseWriter, _ *http.Request) (int, any, error) {
	categories := post.Categories()
	return http.StatusOK, &responses.Categories{
		Categories: categories,
		Default:    post.DefaultCategory(),
		Filters:    append([]string{post.FilterAll}, categories...),
	}, nil
}

func (h *HTTP) getPosts(_ http.ResponseWriter, r *http.Request) (int, any, error) {
	filter, err := filterFromRequest(r)
	if err != nil {
		return 0, nil, err
	}
	snapshot, err := h.repo.GetPosts(filter)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, snapshot, nil
}

func (h *HTTP) createPost(w http.ResponseWriter, r *http.Request) (int, any, error) {
	id, err := h.issuer.Authenticate(r)
	if err != nil {
		return 0, nil, err
	}
	req := &requests.CreatePost{}
	if err := decode(r, w, req); err != nil {
		return 0, nil, err
	}
	p, err := h.repo.CreatePost(r.Context(), id.UID, req)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusCreated, p, nil
}

func (h *HTTP) resolvePost(_ http.ResponseWriter, r *http.Request) (int, any, error) {
	id, err := h.issuer.Authenticate(r)
	if err != nil {
		return 0, nil, err
	}
	postID := r.PathValue("id")
	p, err := h.repo.ResolvePost(r.Context(), postID)
	if err != nil {
		return 0, nil, err
	}
	h.l.Debug("post resolved", zap.String("id", postID), zap.String("uid", id.UID))
	return http.StatusOK, p, nil
}

func (h *HTTP) getStats(_ http.ResponseWriter, _ *http.Request) (int, any, error) {
	stats, err := h.repo.GetStats()
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, stats, nil
}

func (h *HTTP) update(w http.ResponseWriter, r *http.Request) (int, any, error) {
	if r.ContentLength > 0 {
		if err := decode(r, w, &requests.Update{}); err != nil {
			return 0, nil, err
		}
	}
	return http.StatusOK, h.repo.Update(r.Context()), nil
}

func (h *HTTP) getRepo(w http.ResponseWriter, r *http.Request) error {
	var buf bytes.Buffer
	if err := h.repo.WriteFeedBytes(r.Context(), &buf); errors.Is(err, os.ErrNotExist) {
		return repo.ErrNotLoaded
	} else if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	_, err := buf.WriteTo(w)
	return err
}

func (h *HTTP) signIn(_ http.ResponseWriter, r *http.Request) (int, any, error) {
	id, err := h.issuer.SignInAnonymously(r.Context())
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, &responses.SignIn{
		UID:       id.UID,
		Token:     id.Token,
		ExpiresAt: id.ExpiresAt,
	}, nil
}

func (h *HTTP) subscribeNewsletter(w http.ResponseWriter, r *http.Request) (int, any, error) {
	req := &requests.Newsletter{}
	if err := decode(r, w, req); err != nil {
		return 0, nil, err
	}
	created, err := h.newsletter.Subscribe(r.Context(), req.Email)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, &responses.Newsletter{
		Subscribed:        true,
		AlreadySubscribed: !created,
	}, nil
}
