package controller

import (
	"net/http"

	"github.com/brroMonta/gifting/internal/app/service"
	"github.com/brroMonta/gifting/internal/errors"
	"github.com/brroMonta/gifting/internal/middleware"
	"github.com/gin-gonic/gin"
)

type PersonController struct {
	personService service.PersonService
}

func NewPersonController(personService service.PersonService) *PersonController {
	return &PersonController{
		personService: personService,
	}
}

type PersonRequest struct {
	Name          string `json:"name" binding:"required"`
	Relationship  string `json:"relationship"`
	BirthdayMonth *int   `json:"birthday_month"`
	BirthdayDay   *int   `json:"birthday_day"`
	BirthdayYear  *int   `json:"birthday_year"`
	Notes         string `json:"notes"`
}

func (r PersonRequest) input() service.PersonInput {
	return service.PersonInput{
		Name:          r.Name,
		Relationship:  r.Relationship,
		BirthdayMonth: r.BirthdayMonth,
		BirthdayDay:   r.BirthdayDay,
		BirthdayYear:  r.BirthdayYear,
		Notes:         r.Notes,
	}
}

// CreatePerson adds a person
// POST /api/v1/people
func (ctrl *PersonController) CreatePerson(c *gin.Context) {
	ownerID, ok := requireOwner(c)
	if !ok {
		return
	}

	var req PersonRequest
	if !bindJSON(c, &req) {
		return
	}

	person, err := ctrl.personService.Create(c.Request.Context(), ownerID, req.input())
	if err != nil {
		errors.FromServiceError(c, err, "create person")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"person": person})
}

// ListPeople returns the owner's people sorted by name
// GET /api/v1/people
func (ctrl *PersonController) ListPeople(c *gin.Context) {
	ownerID, ok := requireOwner(c)
	if !ok {
		return
	}

	people, err := ctrl.personService.List(c.Request.Context(), ownerID)
	if err != nil {
		middleware.GetLoggerFromContext(c).Error("Failed to list people", err, map[string]interface{}{
			"owner_id": ownerID,
		})
		errors.FromServiceError(c, err, "list people")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"people": people,
		"count":  len(people),
	})
}

// GetPerson
// GET /api/v1/people/:person_id
func (ctrl *PersonController) GetPerson(c *gin.Context) {
	ownerID, ok := requireOwner(c)
	if !ok {
		return
	}

	person, err := ctrl.personService.Get(c.Request.Context(), ownerID, c.Param("person_id"))
	if err != nil {
		errors.FromServiceError(c, err, "get person")
		return
	}

	c.JSON(http.StatusOK, gin.H{"person": person})
}

// UpdatePerson replaces the editable fields of a person
// PUT /api/v1/people/:person_id
func (ctrl *PersonController) UpdatePerson(c *gin.Context) {
	ownerID, ok := requireOwner(c)
	if !ok {
		return
	}

	var req PersonRequest
	if !bindJSON(c, &req) {
		return
	}

	person, err := ctrl.personService.Update(c.Request.Context(), ownerID, c.Param("person_id"), req.input())
	if err != nil {
		errors.FromServiceError(c, err, "update person")
		return
	}

	c.JSON(http.StatusOK, gin.H{"person": person})
}

// DeletePerson removes the person together with their gift map and share link
// DELETE /api/v1/people/:person_id
func (ctrl *PersonController) DeletePerson(c *gin.Context) {
	ownerID, ok := requireOwner(c)
	if !ok {
		return
	}

	if err := ctrl.personService.Delete(c.Request.Context(), ownerID, c.Param("person_id")); err != nil {
		errors.FromServiceError(c, err, "delete person")
		return
	}

	c.Status(http.StatusNoContent)
}
