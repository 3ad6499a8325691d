package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rezonia/invoice-engine/internal/model"
	"github.com/rezonia/invoice-engine/internal/processor"
	"github.com/rezonia/invoice-engine/internal/service"
	"github.com/rezonia/invoice-engine/internal/storage"
)

func (s *Server) handleSchemas(c *gin.Context) {
	c.JSON(http.StatusOK, SchemasResponse{Schemas: s.service.Catalog().Entries()})
}

func (s *Server) handleCreate(c *gin.Context) {
	var req CreateInvoiceRequest
	if !bind(c, &req) {
		return
	}

	created, err := s.service.Create(c.Request.Context(), userID(c), req.Invoice)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, invoiceResponse(created, nil))
}

func (s *Server) handleCreateAndValidate(c *gin.Context) {
	var req CreateAndValidateRequest
	if !bind(c, &req) {
		return
	}

	created, result, err := s.service.CreateAndValidate(c.Request.Context(), userID(c), req.Invoice, req.Schemas)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, invoiceResponse(created, result))
}

func (s *Server) handleList(c *gin.Context) {
	var query ListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		_ = c.Error(&bindError{cause: err})
		return
	}

	summaries, err := s.service.List(c.Request.Context(), userID(c), storage.Filter{
		Valid:         model.ValidStatus(query.Valid),
		IncludeShared: query.Shared,
		Limit:         query.Limit,
		Offset:        query.Offset,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, ListResponse{Invoices: summaries})
}

func (s *Server) handleGet(c *gin.Context) {
	inv, err := s.service.Get(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, inv)
}

func (s *Server) handleGetXML(c *gin.Context) {
	xml, err := s.service.GetXML(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.Data(http.StatusOK, "application/xml; charset=utf-8", xml)
}

func (s *Server) handleUpdate(c *gin.Context) {
	var req UpdateInvoiceRequest
	if !bind(c, &req) {
		return
	}

	updated, err := s.service.Update(c.Request.Context(), userID(c), c.Param("id"), req.Invoice)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, invoiceResponse(updated, nil))
}

func (s *Server) handleDelete(c *gin.Context) {
	if err := s.service.Delete(c.Request.Context(), userID(c), c.Param("id")); err != nil {
		_ = c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) handleShare(c *gin.Context) {
	var req ShareRequest
	if !bind(c, &req) {
		return
	}

	id := c.Param("id")
	users, err := s.service.Share(c.Request.Context(), userID(c), id, req.UserIDs)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, ShareResponse{InvoiceID: id, SharedWith: users})
}

func (s *Server) handleValidate(c *gin.Context) {
	var req ValidateRequest
	if !bind(c, &req) {
		return
	}

	batch, err := s.service.Validate(c.Request.Context(), userID(c), req.InvoiceIDs, req.Schemas)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, validationResponse(batch))
}

func (s *Server) handleDecode(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		_ = c.Error(&bindError{cause: err})
		return
	}

	inv, err := s.decoder.Decode(body)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, inv)
}

// bind decodes and validates the JSON body, recording a 400 on failure
func bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		_ = c.Error(&bindError{cause: err})
		return false
	}
	return true
}

func invoiceResponse(e *service.Encoded, result *model.ValidationResult) InvoiceResponse {
	return InvoiceResponse{
		InvoiceID:  e.Invoice.InvoiceID,
		DocumentID: e.DocumentID,
		XML:        string(e.XML),
		Invoice:    e.Invoice,
		Validation: result,
	}
}

func validationResponse(batch *processor.BatchResult) ValidationResponse {
	resp := ValidationResponse{
		BatchID: batch.BatchID,
		Valid:   batch.OverallValid,
		Results: make([]InvoiceValidation, 0, len(batch.Items)),
	}

	for _, item := range batch.Items {
		out := InvoiceValidation{
			InvoiceID: item.InvoiceID,
			Valid:     item.Valid(),
			Errors:    []string{},
			Warnings:  []string{},
		}
		if item.Err != nil {
			out.Error = item.Err.Error()
		} else {
			out.Errors = item.Result.Errors
			out.Warnings = item.Result.Warnings
		}
		resp.Results = append(resp.Results, out)
	}
	return resp
}
