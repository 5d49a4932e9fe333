package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/brroMonta/gifting/internal/app/model"
	"github.com/brroMonta/gifting/internal/app/repository"
	"github.com/brroMonta/gifting/pkg/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PersonInput is the editable part of a person.
type PersonInput struct {
	Name          string
	Relationship  string
	BirthdayMonth *int
	BirthdayDay   *int
	BirthdayYear  *int
	Notes         string
}

type PersonService interface {
	PersonDirectory
	Create(ctx context.Context, ownerID string, input PersonInput) (*model.Person, error)
	List(ctx context.Context, ownerID string) ([]model.Person, error)
	Get(ctx context.Context, ownerID, personID string) (*model.Person, error)
	Update(ctx context.Context, ownerID, personID string, input PersonInput) (*model.Person, error)
	Delete(ctx context.Context, ownerID, personID string) error
}

type personService struct {
	db          *gorm.DB
	personRepo  repository.PersonRepository
	giftMapRepo repository.GiftMapRepository
	sharedRepo  repository.SharedGiftMapRepository
	notifier    *ProjectionNotifier
}

func NewPersonService(
	db *gorm.DB,
	personRepo repository.PersonRepository,
	giftMapRepo repository.GiftMapRepository,
	sharedRepo repository.SharedGiftMapRepository,
	notifier *ProjectionNotifier,
) PersonService {
	return &personService{
		db:          db,
		personRepo:  personRepo,
		giftMapRepo: giftMapRepo,
		sharedRepo:  sharedRepo,
		notifier:    notifier,
	}
}

func validatePerson(input PersonInput) (PersonInput, error) {
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return input, fmt.Errorf("%w: name is required", ErrInvalidPersonInput)
	}
	if m := input.BirthdayMonth; m != nil && (*m < 1 || *m > 12) {
		return input, fmt.Errorf("%w: birthday month must be between 1 and 12", ErrInvalidPersonInput)
	}
	if d := input.BirthdayDay; d != nil && (*d < 1 || *d > 31) {
		return input, fmt.Errorf("%w: birthday day must be between 1 and 31", ErrInvalidPersonInput)
	}
	if (input.BirthdayMonth == nil) != (input.BirthdayDay == nil) {
		return input, fmt.Errorf("%w: birthday needs both month and day", ErrInvalidPersonInput)
	}
	return input, nil
}

func (s *personService) Create(ctx context.Context, ownerID string, input PersonInput) (*model.Person, error) {
	input, err := validatePerson(input)
	if err != nil {
		return nil, err
	}

	person := &model.Person{
		ID:            uuid.New().String(),
		OwnerID:       ownerID,
		Name:          input.Name,
		Relationship:  input.Relationship,
		BirthdayMonth: input.BirthdayMonth,
		BirthdayDay:   input.BirthdayDay,
		BirthdayYear:  input.BirthdayYear,
		Notes:         input.Notes,
	}
	if err := s.personRepo.Create(ctx, person); err != nil {
		return nil, err
	}

	logger.Info("Person created", map[string]interface{}{
		"owner_id":  ownerID,
		"person_id": person.ID,
	})
	return person, nil
}

func (s *personService) List(ctx context.Context, ownerID string) ([]model.Person, error) {
	return s.personRepo.ListByOwner(ctx, ownerID)
}

func (s *personService) Get(ctx context.Context, ownerID, personID string) (*model.Person, error) {
	person, err := s.personRepo.FindByID(ctx, ownerID, personID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPersonNotFound
		}
		return nil, err
	}
	return person, nil
}

func (s *personService) LookupPerson(ctx context.Context, ownerID, personID string) (*model.Person, error) {
	return s.Get(ctx, ownerID, personID)
}

// Update does not touch the name copied into the person's gift map.
func (s *personService) Update(ctx context.Context, ownerID, personID string, input PersonInput) (*model.Person, error) {
	input, err := validatePerson(input)
	if err != nil {
		return nil, err
	}

	person, err := s.Get(ctx, ownerID, personID)
	if err != nil {
		return nil, err
	}

	person.Name = input.Name
	person.Relationship = input.Relationship
	person.BirthdayMonth = input.BirthdayMonth
	person.BirthdayDay = input.BirthdayDay
	person.BirthdayYear = input.BirthdayYear
	person.Notes = input.Notes

	if err := s.personRepo.Update(ctx, person); err != nil {
		return nil, err
	}
	return person, nil
}

// Delete removes the person, their gift map and any projection of it in one
// transaction, then revokes the share link for live viewers.
func (s *personService) Delete(ctx context.Context, ownerID, personID string) error {
	if _, err := s.Get(ctx, ownerID, personID); err != nil {
		return err
	}

	var revoked []string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.giftMapRepo.WithTx(tx).Delete(ctx, ownerID, personID); err != nil {
			return err
		}

		tokens, err := s.sharedRepo.WithTx(tx).DeleteByGiftMap(ctx, ownerID, personID)
		if err != nil {
			return err
		}
		revoked = tokens

		if err := s.personRepo.WithTx(tx).Delete(ctx, ownerID, personID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPersonNotFound
			}
			return err
		}
		return nil
	})
	if err != nil {
		logger.Error("Failed to delete person", err, map[string]interface{}{
			"owner_id":  ownerID,
			"person_id": personID,
		})
		return err
	}

	for _, token := range revoked {
		s.notifier.Revoked(ctx, token)
	}

	logger.Info("Person deleted", map[string]interface{}{
		"owner_id":       ownerID,
		"person_id":      personID,
		"revoked_shares": len(revoked),
	})
	return nil
}
