package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/umalmyha/customer-records/internal/model"
	"github.com/umalmyha/customer-records/internal/service"
	"github.com/umalmyha/customer-records/internal/storage"
)

const photoFormField = "photo"

type identifier struct {
	ID string `json:"id" validate:"required,uuid"`
}

type pageQuery struct {
	PageSize int    `query:"pageSize" validate:"omitempty,min=1"`
	After    string `query:"after"`
}

type searchQuery struct {
	Term string `query:"term" validate:"required"`
}

type customerForm struct {
	Name        string `json:"name" form:"name" validate:"required,max=200"`
	Email       string `json:"email" form:"email" validate:"omitempty,email,max=254"`
	Phone       string `json:"phone" form:"phone" validate:"max=50"`
	Street      string `json:"street" form:"street" validate:"max=200"`
	City        string `json:"city" form:"city" validate:"max=100"`
	State       string `json:"state" form:"state" validate:"max=100"`
	ZipCode     string `json:"zipCode" form:"zipCode" validate:"max=20"`
	Country     string `json:"country" form:"country" validate:"max=100"`
	RemovePhoto bool   `json:"removePhoto" form:"removePhoto"`
}

// CustomerHTTPHandler is http handler for customer endpoint
type CustomerHTTPHandler struct {
	customerSvc     service.CustomerService
	defaultPageSize int
}

// NewCustomerHTTPHandler builds new CustomerHTTPHandler
func NewCustomerHTTPHandler(customerSvc service.CustomerService, defaultPageSize int) *CustomerHTTPHandler {
	return &CustomerHTTPHandler{customerSvc: customerSvc, defaultPageSize: defaultPageSize}
}

// Get gets customer
// @Summary     Get single customer by id
// @Description Returns single customer with provided id
// @Tags        customers
// @Produce     json
// @Param       id     path     string true "Customer guid" Format(uuid)
// @Success     200    {object} model.Customer
// @Failure     400    {object} echo.HTTPError
// @Failure     404    {object} echo.HTTPError
// @Failure     500    {object} echo.HTTPError
// @Router      /api/customers/{id} [get]
func (h *CustomerHTTPHandler) Get(c echo.Context) error {
	id := c.Param("id")
	if err := c.Validate(&identifier{ID: id}); err != nil {
		return err
	}

	customer, err := h.customerSvc.FindByID(c.Request().Context(), id)
	if err != nil {
		return err
	}

	if customer == nil {
		return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("customer %s not found", id))
	}
	return c.JSON(http.StatusOK, customer)
}

// List gets page of customers
// @Summary     List customers
// @Description Returns page of customers ordered from the newest, next is cursor of the following page
// @Tags        customers
// @Produce     json
// @Param       pageSize query    int    false "Page size"
// @Param       after    query    string false "Cursor returned with previous page"
// @Success     200      {object} model.Page
// @Failure     400      {object} echo.HTTPError
// @Failure     500      {object} echo.HTTPError
// @Router      /api/customers [get]
func (h *CustomerHTTPHandler) List(c echo.Context) error {
	var q pageQuery
	if err := c.Bind(&q); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := c.Validate(&q); err != nil {
		return err
	}

	if q.PageSize == 0 {
		q.PageSize = h.defaultPageSize
	}

	var after *model.Cursor
	if q.After != "" {
		cursor, err := model.ParseCursor(q.After)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		after = cursor
	}

	page, err := h.customerSvc.ListPage(c.Request().Context(), q.PageSize, after)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, page)
}

// Search searches customers
// @Summary     Search customers
// @Description Returns customers whose name starts with term ordered by name
// @Tags        customers
// @Produce     json
// @Param       term query    string true "Name prefix"
// @Success     200  {array}  model.Customer
// @Failure     400  {object} echo.HTTPError
// @Failure     500  {object} echo.HTTPError
// @Router      /api/customers/search [get]
func (h *CustomerHTTPHandler) Search(c echo.Context) error {
	var q searchQuery
	if err := c.Bind(&q); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := c.Validate(&q); err != nil {
		return err
	}

	customers, err := h.customerSvc.Search(c.Request().Context(), q.Term)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, customers)
}

// Post creates new customer
// @Summary     New Customer
// @Description Creates new customer, photo is optional
// @Tags        customers
// @Accept      mpfd
// @Accept      json
// @Produce     json
// @Param       name    formData string true  "Name"
// @Param       email   formData string false "Email"
// @Param       phone   formData string false "Phone"
// @Param       street  formData string false "Street"
// @Param       city    formData string false "City"
// @Param       state   formData string false "State"
// @Param       zipCode formData string false "Zip code"
// @Param       country formData string false "Country"
// @Param       photo   formData file   false "Photo"
// @Success     201     {object} model.Customer
// @Failure     400     {object} echo.HTTPError
// @Failure     500     {object} echo.HTTPError
// @Router      /api/customers [post]
func (h *CustomerHTTPHandler) Post(c echo.Context) error {
	form, err := h.bindForm(c)
	if err != nil {
		return err
	}

	customer, err := h.customerSvc.Create(c.Request().Context(), form)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, customer)
}

// Put updates customer
// @Summary     Update Customer
// @Description Updates customer, uploaded photo replaces existing one, removePhoto drops it
// @Tags        customers
// @Accept      mpfd
// @Accept      json
// @Produce     json
// @Param       id          path     string true  "Customer guid" Format(uuid)
// @Param       name        formData string true  "Name"
// @Param       email       formData string false "Email"
// @Param       phone       formData string false "Phone"
// @Param       street      formData string false "Street"
// @Param       city        formData string false "City"
// @Param       state       formData string false "State"
// @Param       zipCode     formData string false "Zip code"
// @Param       country     formData string false "Country"
// @Param       photo       formData file   false "Photo"
// @Param       removePhoto formData bool   false "Remove existing photo"
// @Success     200         {object} model.Customer
// @Failure     400         {object} echo.HTTPError
// @Failure     404         {object} echo.HTTPError
// @Failure     500         {object} echo.HTTPError
// @Router      /api/customers/{id} [put]
func (h *CustomerHTTPHandler) Put(c echo.Context) error {
	id := c.Param("id")
	if err := c.Validate(&identifier{ID: id}); err != nil {
		return err
	}

	form, err := h.bindForm(c)
	if err != nil {
		return err
	}

	customer, err := h.customerSvc.Update(c.Request().Context(), id, form)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, customer)
}

// DeleteByID deletes customer
// @Summary     Delete customer by id
// @Description Deletes customer with provided id together with its photo
// @Tags        customers
// @Param       id  path string true "Customer guid" Format(uuid)
// @Success     204 "Successful status code"
// @Failure     400 {object} echo.HTTPError
// @Failure     500 {object} echo.HTTPError
// @Router      /api/customers/{id} [delete]
func (h *CustomerHTTPHandler) DeleteByID(c echo.Context) error {
	id := c.Param("id")
	if err := c.Validate(&identifier{ID: id}); err != nil {
		return err
	}

	if err := h.customerSvc.DeleteByID(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Statistics gets customers statistics
// @Summary     Customers statistics
// @Description Returns total and new customers count with breakdown by country
// @Tags        statistics
// @Produce     json
// @Success     200 {object} model.Statistics
// @Failure     500 {object} echo.HTTPError
// @Router      /api/statistics [get]
func (h *CustomerHTTPHandler) Statistics(c echo.Context) error {
	stats, err := h.customerSvc.Statistics(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stats)
}

func (h *CustomerHTTPHandler) bindForm(c echo.Context) (*model.CustomerForm, error) {
	var cf customerForm
	if err := c.Bind(&cf); err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := c.Validate(&cf); err != nil {
		return nil, err
	}

	photo, err := h.photoChange(c, cf.RemovePhoto)
	if err != nil {
		return nil, err
	}

	return &model.CustomerForm{
		Name:  cf.Name,
		Email: cf.Email,
		Phone: cf.Phone,
		Address: model.Address{
			Street:  cf.Street,
			City:    cf.City,
			State:   cf.State,
			ZipCode: cf.ZipCode,
			Country: cf.Country,
		},
		Photo: photo,
	}, nil
}

func (h *CustomerHTTPHandler) photoChange(c echo.Context, remove bool) (model.PhotoChange, error) {
	if !isMultipart(c) {
		if remove {
			return model.ClearPhoto(), nil
		}
		return model.KeepPhoto(), nil
	}

	fileHdr, err := c.FormFile(photoFormField)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			if remove {
				return model.ClearPhoto(), nil
			}
			return model.KeepPhoto(), nil
		}
		return model.PhotoChange{}, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if remove {
		return model.PhotoChange{}, echo.NewHTTPError(http.StatusBadRequest, "photo can't be uploaded and removed at the same time")
	}

	file, err := fileHdr.Open()
	if err != nil {
		return model.PhotoChange{}, echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("failed to load file content - %v", err))
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return model.PhotoChange{}, echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return model.ReplacePhoto(content, fileHdr.Filename), nil
}

func isMultipart(c echo.Context) bool {
	ctype := c.Request().Header.Get(echo.HeaderContentType)
	return strings.HasPrefix(ctype, echo.MIMEMultipartForm)
}

// PhotoHTTPHandler is http handler for photos endpoint
type PhotoHTTPHandler struct {
	photoStorage storage.PhotoStorage
}

// NewPhotoHTTPHandler builds new PhotoHTTPHandler
func NewPhotoHTTPHandler(photoStorage storage.PhotoStorage) *PhotoHTTPHandler {
	return &PhotoHTTPHandler{photoStorage: photoStorage}
}

// Download downloads photo
// @Summary     Download photo
// @Description Downloads customer photo from storage
// @Tags        photos
// @Produce     image/gif
// @Produce     image/jpeg
// @Produce     image/png
// @Produce     image/webp
// @Param       key path     string true "Photo key"
// @Success     200 {string} file
// @Failure     400 {object} echo.HTTPError
// @Failure     404 {object} echo.HTTPError
// @Failure     500 {object} echo.HTTPError
// @Router      /api/photos/{key} [get]
func (h *PhotoHTTPHandler) Download(c echo.Context) error {
	key := c.Param("*")

	content, err := h.photoStorage.Get(c.Request().Context(), key)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "photo not found")
		case errors.Is(err, storage.ErrInvalidKey):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		default:
			return err
		}
	}

	c.Response().Header().Set(echo.HeaderCacheControl, "public, max-age=31536000, immutable")
	return c.Blob(http.StatusOK, http.DetectContentType(content), content)
}
