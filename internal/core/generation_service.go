package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"sitebrief-backend-go/internal/db"
	"sitebrief-backend-go/internal/maps"
	"sitebrief-backend-go/internal/models"
	"sitebrief-backend-go/pkg/messagequeue"
)

// GenerationQueueName is the durable queue the brief-generation worker reads.
// GenerationResultsQueueName carries the worker's finished briefs back.
const (
	GenerationQueueName        = "brief_generation"
	GenerationResultsQueueName = "brief_generation_results"
)

// Generation error definitions.
var (
	ErrGenerationQuotaExceeded = errors.New("monthly generation quota exceeded for plan")
	// ErrGenerationUnavailable is returned when the deployment runs without a
	// message queue, so no worker can pick up the job.
	ErrGenerationUnavailable = errors.New("brief generation is not available")
)

// GenerationJob is the message published for the generation worker. The worker
// produces section text and calls back into ApplyGeneratedSections.
type GenerationJob struct {
	PromptID        string    `json:"promptId"`
	RequestedBy     string    `json:"requestedBy"`
	MapsURL         string    `json:"mapsUrl"`
	BusinessName    string    `json:"businessName,omitempty"`
	BusinessAddress string    `json:"businessAddress,omitempty"`
	Latitude        float64   `json:"latitude,omitempty"`
	Longitude       float64   `json:"longitude,omitempty"`
	CID             string    `json:"cid,omitempty"`
	RequestedAt     time.Time `json:"requestedAt"`
}

// GenerationResult is the worker's reply on the results queue: the generated
// sections for one prompt, attributed to the user who requested them.
type GenerationResult struct {
	PromptID string           `json:"promptId"`
	UserID   string           `json:"userId"`
	Sections []models.Section `json:"sections"`
}

// generationService implements the GenerationService interface.
type generationService struct {
	promptRepo db.PromptRepository
	userRepo   db.UserRepository
	queue      messagequeue.MessageQueue // optional; nil disables generation
	expander   maps.LinkExpander         // optional; nil skips link resolution
	now        func() time.Time
}

// NewGenerationService creates a new GenerationService instance. Both the
// queue and the expander may be nil in reduced deployments.
func NewGenerationService(pr db.PromptRepository, ur db.UserRepository, queue messagequeue.MessageQueue, expander maps.LinkExpander) GenerationService {
	return &generationService{
		promptRepo: pr,
		userRepo:   ur,
		queue:      queue,
		expander:   expander,
		now:        time.Now,
	}
}

// RequestGeneration resolves the maps link, checks the caller's monthly quota
// and publishes a job for the generation worker. The quota check is advisory
// (read, not reserve); the counter itself advances with a server-side
// increment after the job is accepted, so concurrent requests can overshoot
// the cap by at most the number of in-flight requests.
func (s *generationService) RequestGeneration(ctx context.Context, callerID, promptID string, req models.GenerateRequest) (*GenerationJob, error) {
	if s.promptRepo == nil || s.userRepo == nil {
		return nil, errors.New("generationService: component not initialized")
	}
	if callerID == "" {
		return nil, ErrUnauthenticated
	}
	if s.queue == nil {
		return nil, ErrGenerationUnavailable
	}

	prompt, err := getPrompt(ctx, s.promptRepo, promptID)
	if err != nil {
		return nil, err
	}
	if granted, _ := Authorize(prompt, callerID, CapabilityEdit); !granted {
		return nil, fmt.Errorf("%w: caller may not edit prompt '%s'", ErrPermissionDenied, promptID)
	}

	caller, err := s.userRepo.GetByID(ctx, callerID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("%w: '%s'", ErrUserNotFound, callerID)
		}
		return nil, fmt.Errorf("failed to get user '%s': %w", callerID, err)
	}
	limits := LimitsForPlan(caller.Plan)
	if caller.GenerationsUsed >= limits.MonthlyGenerations {
		return nil, fmt.Errorf("%w: plan %s allows %d generation(s), %d used",
			ErrGenerationQuotaExceeded, caller.Plan, limits.MonthlyGenerations, caller.GenerationsUsed)
	}

	mapsURL := req.MapsURL
	if mapsURL == "" {
		mapsURL = prompt.MapsURL
	}
	if mapsURL == "" {
		return nil, fmt.Errorf("%w: no maps link on request or prompt", maps.ErrUnsupportedLink)
	}

	job := &GenerationJob{
		PromptID:    promptID,
		RequestedBy: callerID,
		MapsURL:     mapsURL,
		RequestedAt: s.now().UTC(),
	}
	if s.expander != nil {
		business, expandErr := s.expander.Expand(ctx, mapsURL)
		if expandErr != nil {
			return nil, expandErr
		}
		job.BusinessName = business.Name
		job.BusinessAddress = business.Address
		job.Latitude = business.Latitude
		job.Longitude = business.Longitude
		job.CID = business.CID

		// Patch only the business fields; a whole-struct write here could
		// revert a concurrent edit's sections and version.
		fields := map[string]interface{}{"mapsUrl": mapsURL}
		if business.Name != "" {
			fields["businessName"] = business.Name
		}
		if business.Address != "" {
			fields["businessAddress"] = business.Address
		}
		if updateErr := s.promptRepo.UpdateFields(ctx, promptID, fields); updateErr != nil {
			log.Printf("Warning: failed to store business details on prompt '%s': %v", promptID, updateErr)
		}
	}

	payload, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("failed to encode generation job: %w", err)
	}
	if err := s.queue.Publish(GenerationQueueName, payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGenerationUnavailable, err)
	}

	if err := s.userRepo.IncrementGenerationsUsed(ctx, callerID); err != nil {
		// The job is already queued; losing one count beats failing the call.
		log.Printf("Warning: failed to increment generation counter for user '%s': %v", callerID, err)
	}

	return job, nil
}

// ConsumeResults subscribes to the worker's results queue and applies each
// finished brief to its prompt. Returns ErrGenerationUnavailable when the
// deployment runs without a queue.
func (s *generationService) ConsumeResults() error {
	if s.queue == nil {
		return ErrGenerationUnavailable
	}
	return s.queue.Consume(GenerationResultsQueueName, s.handleResult)
}

func (s *generationService) handleResult(body []byte) {
	var result GenerationResult
	if err := json.Unmarshal(body, &result); err != nil {
		log.Printf("Warning: discarding malformed generation result: %v", err)
		return
	}
	if err := s.ApplyGeneratedSections(context.Background(), result.UserID, result.PromptID, result.Sections); err != nil {
		log.Printf("Warning: failed to apply generated sections to prompt '%s': %v", result.PromptID, err)
	}
}

// ApplyGeneratedSections replaces the prompt's content with the worker's
// output. Every change goes through the transactional edit path, one record
// per removed and per inserted section, so the version counter and the history
// stay truthful even if collaborators edit concurrently.
func (s *generationService) ApplyGeneratedSections(ctx context.Context, userID, promptID string, sections []models.Section) error {
	if s.promptRepo == nil {
		return errors.New("generationService: component not initialized")
	}
	if userID == "" {
		return ErrUnauthenticated
	}
	if len(sections) == 0 {
		return fmt.Errorf("%w: no sections to apply", ErrInvalidSection)
	}

	prompt, err := getPrompt(ctx, s.promptRepo, promptID)
	if err != nil {
		return err
	}
	if granted, _ := Authorize(prompt, userID, CapabilityEdit); !granted {
		return fmt.Errorf("%w: user '%s' may not edit prompt '%s'", ErrPermissionDenied, userID, promptID)
	}

	now := s.now().UTC()

	// Drain existing sections from the front.
	for range prompt.Sections {
		if _, err := s.promptRepo.ApplyEdit(ctx, promptID, func(p *models.Prompt) (*models.EditRecord, error) {
			if len(p.Sections) == 0 {
				return nil, fmt.Errorf("%w: nothing left to remove", ErrInvalidSection)
			}
			removed := p.Sections[0]
			p.Sections = p.Sections[1:]
			p.Version++
			p.UpdatedAt = now
			return &models.EditRecord{
				AuthorID:     userID,
				SectionIndex: 0,
				Operation:    models.OpDelete,
				OldContent:   removed.Content,
				Version:      p.Version,
				Timestamp:    now,
			}, nil
		}); err != nil {
			return err
		}
	}

	for i, section := range sections {
		idx := i
		sec := section
		if _, err := s.promptRepo.ApplyEdit(ctx, promptID, func(p *models.Prompt) (*models.EditRecord, error) {
			insertAt := idx
			if insertAt > len(p.Sections) {
				insertAt = len(p.Sections)
			}
			p.Sections = append(p.Sections, models.Section{})
			copy(p.Sections[insertAt+1:], p.Sections[insertAt:])
			p.Sections[insertAt] = sec
			p.Version++
			p.UpdatedAt = now
			return &models.EditRecord{
				AuthorID:     userID,
				SectionIndex: insertAt,
				Operation:    models.OpInsert,
				NewContent:   sec.Content,
				Version:      p.Version,
				Timestamp:    now,
			}, nil
		}); err != nil {
			return err
		}
	}

	return nil
}
