package client

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	logrusTest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"github.com/umalmyha/customer-records/internal/config"
	apperrors "github.com/umalmyha/customer-records/internal/errors"
	"github.com/umalmyha/customer-records/internal/infra"
	"github.com/umalmyha/customer-records/internal/model"
	"github.com/umalmyha/customer-records/internal/service/mocks"
	"github.com/umalmyha/customer-records/internal/storage"
)

const testCustomerID = "0d7a7b1e-4a43-4b8e-8f51-2d1c4a3c8e11"

type clientTestSuite struct {
	suite.Suite
	customerSvc *mocks.CustomerService
	server      *httptest.Server
	client      *Client
}

func (s *clientTestSuite) SetupTest() {
	cfg, err := config.Build()
	s.Require().NoError(err)

	logger, _ := logrusTest.NewNullLogger()
	photoStorage, err := storage.NewFilesystemPhotoStorage(s.T().TempDir(), storage.NewLocator("http://localhost"), logger)
	s.Require().NoError(err)

	s.customerSvc = mocks.NewCustomerService(s.T())

	app, err := infra.Router(cfg, infra.RouterDeps{
		CustomerSvc:  s.customerSvc,
		PhotoStorage: photoStorage,
		Registry:     prometheus.NewRegistry(),
		Logger:       logger,
	})
	s.Require().NoError(err)

	s.server = httptest.NewServer(app)
	s.client = New(s.server.URL+"/", WithHTTPClient(s.server.Client()))
}

func (s *clientTestSuite) TearDownTest() {
	s.server.Close()
}

func (s *clientTestSuite) TestListPage() {
	ctx := context.Background()
	first := &model.Customer{ID: "b", CreatedAt: 2}
	second := &model.Customer{ID: "a", CreatedAt: 1}

	s.customerSvc.On("ListPage", mock.Anything, 1, (*model.Cursor)(nil)).
		Return(model.NewPage([]*model.Customer{first}, 1), nil).Once()
	s.customerSvc.On("ListPage", mock.Anything, 1, mock.MatchedBy(func(c *model.Cursor) bool {
		return c != nil && c.ID() == "b"
	})).Return(model.NewPage([]*model.Customer{second}, 1), nil).Once()

	page, err := s.client.ListPage(ctx, 1, nil)
	s.Require().NoError(err)
	s.Require().Len(page.Items, 1)
	s.Require().NotNil(page.Next, "full page must carry cursor")

	page, err = s.client.ListPage(ctx, 1, page.Next)
	s.Require().NoError(err)
	s.Equal("a", page.Items[0].ID)
}

func (s *clientTestSuite) TestSearch() {
	s.customerSvc.On("Search", mock.Anything, "Jo & Co").Return([]*model.Customer{{ID: "1", Name: "Jo & Co"}}, nil).Once()

	found, err := s.client.Search(context.Background(), "Jo & Co")
	s.Require().NoError(err)
	s.Require().Len(found, 1)
	s.Equal("1", found[0].ID)
}

func (s *clientTestSuite) TestGetMissing() {
	s.customerSvc.On("FindByID", mock.Anything, testCustomerID).Return(nil, nil).Once()

	customer, err := s.client.Get(context.Background(), testCustomerID)
	s.Require().NoError(err)
	s.Nil(customer)
}

func (s *clientTestSuite) TestCreateWithPhoto() {
	photo := []byte("\x89PNG\r\n\x1a\n")
	form := &model.CustomerForm{
		Name:    "John Doe",
		Email:   "john@doe.com",
		Address: model.Address{City: "Austin", Country: "US"},
		Photo:   model.ReplacePhoto(photo, "john.png"),
	}

	s.customerSvc.On("Create", mock.Anything, mock.MatchedBy(func(f *model.CustomerForm) bool {
		return f.Name == form.Name && f.Email == form.Email && f.Address == form.Address &&
			f.Photo.Action() == model.PhotoReplace && bytes.Equal(f.Photo.Content(), photo) &&
			f.Photo.Filename() == "john.png"
	})).Return(&model.Customer{ID: testCustomerID, Name: form.Name}, nil).Once()

	created, err := s.client.Create(context.Background(), form)
	s.Require().NoError(err)
	s.Equal(testCustomerID, created.ID)
}

func (s *clientTestSuite) TestUpdateClearPhoto() {
	s.customerSvc.On("Update", mock.Anything, testCustomerID, mock.MatchedBy(func(f *model.CustomerForm) bool {
		return f.Photo.Action() == model.PhotoClear
	})).Return(&model.Customer{ID: testCustomerID}, nil).Once()

	_, err := s.client.Update(context.Background(), testCustomerID, &model.CustomerForm{Name: "John", Photo: model.ClearPhoto()})
	s.Require().NoError(err)
}

func (s *clientTestSuite) TestUpdateRejected() {
	s.customerSvc.On("Update", mock.Anything, testCustomerID, mock.Anything).
		Return(nil, apperrors.NewNotFoundErr("customer doesn't exist")).Once()

	_, err := s.client.Update(context.Background(), testCustomerID, &model.CustomerForm{Name: "John"})

	var apiErr *APIError
	s.Require().True(errors.As(err, &apiErr))
	s.Equal(http.StatusNotFound, apiErr.StatusCode)
	s.Equal("customer doesn't exist", apiErr.Message)
}

func (s *clientTestSuite) TestDeleteAndStatistics() {
	ctx := context.Background()
	s.customerSvc.On("DeleteByID", mock.Anything, testCustomerID).Return(nil).Once()
	s.customerSvc.On("Statistics", mock.Anything).Return(&model.Statistics{TotalCount: 4}, nil).Once()

	s.Require().NoError(s.client.DeleteByID(ctx, testCustomerID))

	stats, err := s.client.Statistics(ctx)
	s.Require().NoError(err)
	s.Equal(4, stats.TotalCount)
}

func (s *clientTestSuite) TestInternalError() {
	s.customerSvc.On("Statistics", mock.Anything).Return(nil, errors.New("boom")).Once()

	_, err := s.client.Statistics(context.Background())

	var apiErr *APIError
	s.Require().True(errors.As(err, &apiErr))
	s.Equal(http.StatusInternalServerError, apiErr.StatusCode)
	s.Equal("Internal server error", apiErr.Message)
}

func TestClient(t *testing.T) {
	suite.Run(t, new(clientTestSuite))
}
