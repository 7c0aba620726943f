package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	retry "github.com/avast/retry-go/v5"

	"github.com/freenoai/authd/internal/cache"
	"github.com/freenoai/authd/internal/domain"
	"github.com/freenoai/authd/internal/store"
	"github.com/freenoai/authd/pkg/idx"
	"github.com/freenoai/authd/pkg/slogx"
)

var (
	// ErrCheckerUnavailable reports that the plagiarism checker could not
	// be reached after the bounded retry budget.
	ErrCheckerUnavailable = errors.New("service: checker unavailable")

	// ErrSubmissionNotFound covers both an unknown submission id and one
	// owned by a different user.
	ErrSubmissionNotFound = errors.New("service: submission not found")
)

const (
	submissionKeyPrefix = "submission:"
	userSubmissionsTag  = "user-submissions:"

	checkerTimeout  = 15 * time.Second
	checkerAttempts = 3
)

// ThesisService hands documents to the external plagiarism checker and
// tracks each submission's progress. The checker is an opaque HTTP
// collaborator; only its report id comes back.
type ThesisService struct {
	Store      store.Store
	Cache      *cache.Cache
	CheckerURL string

	client *http.Client
}

func NewThesisService(st store.Store, c *cache.Cache, checkerURL string) *ThesisService {
	return &ThesisService{
		Store:      st,
		Cache:      c,
		CheckerURL: checkerURL,
		client:     &http.Client{Timeout: checkerTimeout},
	}
}

// Submit records the submission, then hands it to the checker with a
// bounded retry budget. If the checker stays unreachable the submission
// is marked Failed and ErrCheckerUnavailable returned; the row survives
// so the client can resubmit.
func (s *ThesisService) Submit(ctx context.Context, userID, title, documentURL string) (domain.ThesisSubmission, error) {
	sub := domain.ThesisSubmission{
		ID:          idx.New().String(),
		UserID:      userID,
		Title:       title,
		DocumentURL: documentURL,
		Status:      domain.SubmissionQueued,
	}
	if err := s.Store.Submissions().CreateSubmission(ctx, sub); err != nil {
		return domain.ThesisSubmission{}, err
	}

	reportID, err := s.startCheck(ctx, sub)
	if err != nil {
		slogx.FromContext(ctx).Error("checker submission failed",
			"submission_id", sub.ID, "err", err)
		sub.Status = domain.SubmissionFailed
		_ = s.Store.Submissions().UpdateSubmissionReport(ctx, sub.ID, "", domain.SubmissionFailed)
		s.Cache.DeleteByTag(ctx, userSubmissionsTag+userID)
		return sub, ErrCheckerUnavailable
	}

	sub.ReportID = reportID
	sub.Status = domain.SubmissionChecking
	if err := s.Store.Submissions().UpdateSubmissionReport(ctx, sub.ID, reportID, domain.SubmissionChecking); err != nil {
		return domain.ThesisSubmission{}, err
	}
	s.Cache.DeleteByTag(ctx, userSubmissionsTag+userID)
	return sub, nil
}

// startCheck posts the document reference to the checker and returns the
// assigned report id.
func (s *ThesisService) startCheck(ctx context.Context, sub domain.ThesisSubmission) (string, error) {
	payload, err := json.Marshal(map[string]string{
		"submissionId": sub.ID,
		"title":        sub.Title,
		"documentUrl":  sub.DocumentURL,
	})
	if err != nil {
		return "", err
	}

	var reportID string
	err = retry.New(
		retry.Attempts(checkerAttempts),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	).Do(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.CheckerURL+"/v1/checks", bytes.NewReader(payload))
		if err != nil {
			return retry.Unrecoverable(err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode >= 500:
			return fmt.Errorf("checker status %d", resp.StatusCode)
		case resp.StatusCode >= 400:
			return retry.Unrecoverable(fmt.Errorf("checker rejected submission: status %d", resp.StatusCode))
		}

		var body struct {
			ReportID string `json:"reportId"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return retry.Unrecoverable(fmt.Errorf("decode checker response: %w", err))
		}
		reportID = body.ReportID
		return nil
	})
	if err != nil {
		return "", err
	}
	return reportID, nil
}

// Get returns one submission, from cache when possible. A submission
// belonging to another user reads as not found.
func (s *ThesisService) Get(ctx context.Context, userID, id string) (domain.ThesisSubmission, error) {
	key := submissionKeyPrefix + id

	var sub domain.ThesisSubmission
	if !s.Cache.Get(ctx, key, &sub) {
		var err error
		sub, err = s.Store.Submissions().GetSubmissionByID(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return domain.ThesisSubmission{}, ErrSubmissionNotFound
			}
			return domain.ThesisSubmission{}, err
		}
		s.Cache.Set(ctx, key, sub, cache.Options{Tags: []string{userSubmissionsTag + sub.UserID}})
	}

	if sub.UserID != userID {
		return domain.ThesisSubmission{}, ErrSubmissionNotFound
	}
	return sub, nil
}

// List returns the user's submissions, newest first. Uncached: the list
// changes shape on every submit and the per-item cache covers polling.
func (s *ThesisService) List(ctx context.Context, userID string) ([]domain.ThesisSubmission, error) {
	return s.Store.Submissions().ListSubmissionsByUser(ctx, userID)
}

// CompleteReport records the checker's verdict, delivered via callback,
// and drops the user's cached view.
func (s *ThesisService) CompleteReport(ctx context.Context, id, reportID string, status domain.SubmissionStatus) error {
	sub, err := s.Store.Submissions().GetSubmissionByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrSubmissionNotFound
		}
		return err
	}

	if err := s.Store.Submissions().UpdateSubmissionReport(ctx, id, reportID, status); err != nil {
		return err
	}
	s.Cache.Delete(ctx, submissionKeyPrefix+id)
	s.Cache.DeleteByTag(ctx, userSubmissionsTag+sub.UserID)
	return nil
}
