package kdo

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"noyel/internal/models"
)

const (
	maxTitleLength  = 50
	maxGifteeLength = 100
	maxPriceCents   = 999999
	landingSize     = 10
)

// PresentInput carries the editable fields of a present. Price is a decimal
// string with at most two decimals; empty clears it.
type PresentInput struct {
	Title       string                `json:"title"`
	Giftee      string                `json:"giftee"`
	Description string                `json:"description"`
	Link        string                `json:"link"`
	Price       string                `json:"price"`
	Status      *models.PresentStatus `json:"status,omitempty"`
}

// PresentSummary is a present as listed, with its number of comments.
type PresentSummary struct {
	Present      models.Present `json:"present"`
	CommentCount int64          `json:"comment_count"`
}

// PresentDetail bundles what the present page shows.
type PresentDetail struct {
	Present      models.Present      `json:"present"`
	Comments     []models.Comment    `json:"comments"`
	Invitations  []models.Invitation `json:"invitations"`
	SimilarCount int                 `json:"similar_count"`
	NewFriends   []models.User       `json:"new_friends"`
}

// Landing is the home page content of a user.
type Landing struct {
	Presents []models.Present `json:"presents"`
	Comments []models.Comment `json:"comments"`
}

type presentFields struct {
	title       string
	giftee      string
	description string
	link        string
	priceCents  *int64
}

func validatePresentInput(in PresentInput) (presentFields, error) {
	f := presentFields{
		title:       strings.TrimSpace(in.Title),
		giftee:      strings.TrimSpace(in.Giftee),
		description: strings.TrimSpace(in.Description),
		link:        strings.TrimSpace(in.Link),
	}
	switch {
	case f.title == "":
		return f, fmt.Errorf("%w: title is required", ErrInvalidInput)
	case utf8.RuneCountInString(f.title) > maxTitleLength:
		return f, fmt.Errorf("%w: title is limited to %d characters", ErrInvalidInput, maxTitleLength)
	case f.giftee == "":
		return f, fmt.Errorf("%w: giftee is required", ErrInvalidInput)
	case utf8.RuneCountInString(f.giftee) > maxGifteeLength:
		return f, fmt.Errorf("%w: giftee is limited to %d characters", ErrInvalidInput, maxGifteeLength)
	}
	if f.link != "" {
		u, err := url.Parse(f.link)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return f, fmt.Errorf("%w: link must be an absolute http or https URL", ErrInvalidInput)
		}
	}
	price, err := ParsePrice(in.Price)
	if err != nil {
		return f, err
	}
	f.priceCents = price
	return f, nil
}

// ParsePrice converts a decimal amount such as "12.5" to cents. An empty string
// yields nil.
func ParsePrice(raw string) (*int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	whole, frac, hasFrac := strings.Cut(raw, ".")
	if whole == "" || len(frac) > 2 || (hasFrac && frac == "") {
		return nil, fmt.Errorf("%w: price %q must have at most two decimals", ErrInvalidInput, raw)
	}
	for len(frac) < 2 {
		frac += "0"
	}
	if strings.ContainsAny(whole+frac, "+-") {
		return nil, fmt.Errorf("%w: price %q must not be signed", ErrInvalidInput, raw)
	}
	cents, err := strconv.ParseInt(whole+frac, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: price %q is not a number", ErrInvalidInput, raw)
	}
	if cents > maxPriceCents {
		return nil, fmt.Errorf("%w: price is limited to %s", ErrInvalidInput, models.FormatPrice(maxPriceCents))
	}
	return &cents, nil
}

// CreatePresent stores a suggested present with the creator as its first participant.
func (s *Service) CreatePresent(ctx context.Context, user models.User, in PresentInput) (models.Present, error) {
	f, err := validatePresentInput(in)
	if err != nil {
		return models.Present{}, err
	}

	present := models.Present{
		ID:          uuid.New(),
		Title:       f.title,
		Giftee:      f.giftee,
		Description: f.description,
		Link:        f.link,
		PriceCents:  f.priceCents,
		Status:      models.StatusSuggested,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(&present).Error; err != nil {
			return err
		}
		return tx.Omit(clause.Associations).Create(&models.Participant{PresentID: present.ID, UserID: user.ID}).Error
	})
	if err != nil {
		return models.Present{}, err
	}
	return present, nil
}

func (s *Service) participatingPresents(ctx context.Context, userID uuid.UUID) *gorm.DB {
	return s.db.WithContext(ctx).
		Joins("JOIN participants ON participants.present_id = presents.id AND participants.user_id = ?", userID)
}

// ListPresents returns the presents the user participates in, most recently updated first.
func (s *Service) ListPresents(ctx context.Context, user models.User) ([]PresentSummary, error) {
	return s.summaries(ctx, s.participatingPresents(ctx, user.ID))
}

// ListForGiftee is ListPresents restricted to a giftee, compared case-insensitively.
func (s *Service) ListForGiftee(ctx context.Context, user models.User, giftee string) ([]PresentSummary, error) {
	q := s.participatingPresents(ctx, user.ID).Where("LOWER(presents.giftee) = LOWER(?)", strings.TrimSpace(giftee))
	return s.summaries(ctx, q)
}

func (s *Service) summaries(ctx context.Context, q *gorm.DB) ([]PresentSummary, error) {
	var presents []models.Present
	if err := q.Order("presents.updated_at DESC").Find(&presents).Error; err != nil {
		return nil, err
	}
	if len(presents) == 0 {
		return []PresentSummary{}, nil
	}

	ids := make([]uuid.UUID, len(presents))
	for i, p := range presents {
		ids[i] = p.ID
	}
	var counts []struct {
		PresentID uuid.UUID
		Total     int64
	}
	err := s.db.WithContext(ctx).Model(&models.Comment{}).
		Select("present_id, COUNT(*) AS total").
		Where("present_id IN ?", ids).
		Group("present_id").
		Scan(&counts).Error
	if err != nil {
		return nil, err
	}
	byPresent := make(map[uuid.UUID]int64, len(counts))
	for _, c := range counts {
		byPresent[c.PresentID] = c.Total
	}

	out := make([]PresentSummary, len(presents))
	for i, p := range presents {
		out[i] = PresentSummary{Present: p, CommentCount: byPresent[p.ID]}
	}
	return out, nil
}

// ListSimilar returns the user's other presents for the same giftee.
func (s *Service) ListSimilar(ctx context.Context, user models.User, presentID uuid.UUID) ([]models.Present, error) {
	present, err := requireParticipant(ctx, s.db, presentID, user.ID)
	if err != nil {
		return nil, err
	}
	return s.MatchingGiftee(ctx, present, &user.ID)
}

// GetPresent returns the present page of a participant.
func (s *Service) GetPresent(ctx context.Context, user models.User, presentID uuid.UUID) (PresentDetail, error) {
	present, err := requireParticipant(ctx, s.db, presentID, user.ID)
	if err != nil {
		return PresentDetail{}, err
	}

	detail := PresentDetail{}
	err = s.db.WithContext(ctx).
		Preload("BoughtBy").
		Preload("Participants", func(db *gorm.DB) *gorm.DB { return db.Order("users.username") }).
		First(&detail.Present, "id = ?", present.ID).Error
	if err != nil {
		return PresentDetail{}, err
	}
	if err := s.db.WithContext(ctx).Preload("Author").
		Where("present_id = ?", present.ID).
		Order("posted_at DESC").
		Find(&detail.Comments).Error; err != nil {
		return PresentDetail{}, err
	}
	if err := s.db.WithContext(ctx).Preload("SentBy").
		Where("present_id = ?", present.ID).
		Order("sent_at ASC").
		Find(&detail.Invitations).Error; err != nil {
		return PresentDetail{}, err
	}
	similar, err := s.MatchingGiftee(ctx, present, &user.ID)
	if err != nil {
		return PresentDetail{}, err
	}
	detail.SimilarCount = len(similar)
	if detail.NewFriends, err = s.NewFriendsForPresent(ctx, present.ID, user.ID); err != nil {
		return PresentDetail{}, err
	}
	return detail, nil
}

// UpdatePresent edits a present. The status may move between rejected, suggested
// and accepted; leaving bought forgets the buyer.
func (s *Service) UpdatePresent(ctx context.Context, user models.User, presentID uuid.UUID, in PresentInput) (models.Present, error) {
	f, err := validatePresentInput(in)
	if err != nil {
		return models.Present{}, err
	}
	if in.Status != nil && (!in.Status.Valid() || *in.Status == models.StatusBought) {
		return models.Present{}, fmt.Errorf("%w: status must be rejected, suggested or accepted", ErrInvalidInput)
	}

	var present models.Present
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := requireParticipant(ctx, tx, presentID, user.ID); err != nil {
			return err
		}
		updates := map[string]any{
			"title":       f.title,
			"giftee":      f.giftee,
			"description": f.description,
			"link":        f.link,
			"price_cents": f.priceCents,
		}
		if in.Status != nil {
			updates["status"] = *in.Status
			updates["bought_by_id"] = nil
		}
		if err := tx.Model(&models.Present{ID: presentID}).Updates(updates).Error; err != nil {
			return err
		}
		return tx.First(&present, "id = ?", presentID).Error
	})
	if err != nil {
		return models.Present{}, err
	}
	return present, nil
}

// DeletePresent removes a present with its comments, participants and pending invitations.
func (s *Service) DeletePresent(ctx context.Context, user models.User, presentID uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := requireParticipant(ctx, tx, presentID, user.ID); err != nil {
			return err
		}
		for _, child := range []any{&models.Comment{}, &models.Invitation{}, &models.Participant{}} {
			if err := tx.Where("present_id = ?", presentID).Delete(child).Error; err != nil {
				return err
			}
		}
		if err := tx.Delete(&models.Present{}, "id = ?", presentID).Error; err != nil {
			return err
		}
		return audit(ctx, tx, user.ID, "present.deleted", "present", presentID.String(), nil)
	})
}

// PurchasePresent records the user as the buyer. Buying twice is a no-op; a
// present bought by someone else yields ErrAlreadyBought.
func (s *Service) PurchasePresent(ctx context.Context, user models.User, presentID uuid.UUID) (models.Present, error) {
	var present models.Present
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := requireParticipant(ctx, tx, presentID, user.ID)
		if err != nil {
			return err
		}
		if current.Status == models.StatusBought && current.BoughtByID != nil && *current.BoughtByID == user.ID {
			present = current
			return nil
		}

		res := tx.Model(&models.Present{}).
			Where("id = ? AND status <> ?", presentID, models.StatusBought).
			Updates(map[string]any{"status": models.StatusBought, "bought_by_id": user.ID})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyBought
		}
		if err := audit(ctx, tx, user.ID, "present.purchased", "present", presentID.String(), nil); err != nil {
			return err
		}
		return tx.First(&present, "id = ?", presentID).Error
	})
	if err != nil {
		return models.Present{}, err
	}
	return present, nil
}

// CancelPurchase lets the buyer undo a purchase; the present goes back to accepted.
func (s *Service) CancelPurchase(ctx context.Context, user models.User, presentID uuid.UUID) (models.Present, error) {
	var present models.Present
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := requireParticipant(ctx, tx, presentID, user.ID); err != nil {
			return err
		}
		res := tx.Model(&models.Present{}).
			Where("id = ? AND status = ? AND bought_by_id = ?", presentID, models.StatusBought, user.ID).
			Updates(map[string]any{"status": models.StatusAccepted, "bought_by_id": nil})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotBuyer
		}
		return tx.First(&present, "id = ?", presentID).Error
	})
	if err != nil {
		return models.Present{}, err
	}
	return present, nil
}

// RemoveParticipant takes userID off the present. The caller must participate too.
func (s *Service) RemoveParticipant(ctx context.Context, user models.User, presentID, userID uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := requireParticipant(ctx, tx, presentID, user.ID); err != nil {
			return err
		}
		res := tx.Where("present_id = ? AND user_id = ?", presentID, userID).Delete(&models.Participant{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return audit(ctx, tx, user.ID, "participant.removed", "present", presentID.String(), map[string]any{
			"user_id": userID.String(),
		})
	})
}

// Landing returns the latest presents and comments visible to the user.
func (s *Service) Landing(ctx context.Context, user models.User) (Landing, error) {
	out := Landing{}
	err := s.participatingPresents(ctx, user.ID).
		Order("presents.created_at DESC").
		Limit(landingSize).
		Find(&out.Presents).Error
	if err != nil {
		return Landing{}, err
	}

	visible := s.db.Model(&models.Participant{}).Select("present_id").Where("user_id = ?", user.ID)
	err = s.db.WithContext(ctx).
		Preload("Author").Preload("Present").
		Where("present_id IN (?)", visible).
		Order("posted_at DESC").
		Limit(landingSize).
		Find(&out.Comments).Error
	if err != nil {
		return Landing{}, err
	}
	return out, nil
}

func notFoundOr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
