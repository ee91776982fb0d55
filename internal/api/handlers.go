package api

import (
	"bytes"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/phetools-curation-server/internal/domain"
	"github.com/phetools-curation-server/internal/schema"
	"github.com/phetools-curation-server/internal/service"
)

const tsvContentType = "text/tab-separated-values"

type parseCellRequest struct {
	Text string `json:"text"`
}

type parseCellResponse struct {
	Kind  string           `json:"kind"`
	Value domain.CellValue `json:"value"`
}

type termsRequest struct {
	Terms []domain.TermID `json:"terms" binding:"required"`
}

type templateRequest struct {
	Rows [][]string `json:"rows" binding:"required"`
}

type mergeRequest struct {
	A *domain.Cohort `json:"a" binding:"required"`
	B *domain.Cohort `json:"b" binding:"required"`
}

type qcResponse struct {
	Valid     bool                  `json:"valid"`
	Errors    []string              `json:"errors,omitempty"`
	Conflicts []service.RowConflict `json:"conflicts,omitempty"`
}

func (s *Server) bind(c *gin.Context, target interface{}) bool {
	if err := c.ShouldBindJSON(target); err != nil {
		s.abort(c, domain.NewMCPError(domain.ErrInvalidInput, "Invalid request body", err.Error(), ""))
		return false
	}
	return true
}

func (s *Server) handleParseCell(c *gin.Context) {
	var req parseCellRequest
	if !s.bind(c, &req) {
		return
	}
	value, err := domain.ParseCellValue(req.Text)
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, parseCellResponse{Kind: value.Kind().String(), Value: value})
}

func (s *Server) handleArrange(c *gin.Context) {
	var req termsRequest
	if !s.bind(c, &req) {
		return
	}
	c.JSON(http.StatusOK, s.curation.Arranger().Arrange(req.Terms))
}

// handleCreateTemplate returns an empty template for the requested terms,
// columns in curation order.
func (s *Server) handleCreateTemplate(c *gin.Context) {
	var req termsRequest
	if !s.bind(c, &req) {
		return
	}
	refs := make([]domain.TermRef, 0, len(req.Terms))
	var errs domain.ValidationErrors
	for _, id := range req.Terms {
		label, ok := s.hierarchy.LabelOf(id)
		if !ok {
			errs.Add(&domain.TermLookupError{ID: id, Message: "not found in the ontology"})
			continue
		}
		refs = append(refs, domain.TermRef{ID: id, Label: label})
	}
	if err := errs.Err(); err != nil {
		s.abort(c, err)
		return
	}
	if err := schema.CheckTerms(refs, s.hierarchy); err != nil {
		s.abort(c, err)
		return
	}
	ordered, _ := s.curation.Arranger().ArrangeRefs(refs)
	s.writeTSV(c, schema.NewTemplateMatrix(ordered))
}

func (s *Server) handleValidateTemplate(c *gin.Context) {
	var matrix [][]string
	if strings.HasPrefix(c.ContentType(), tsvContentType) {
		m, err := schema.ReadTSV(c.Request.Body)
		if err != nil {
			s.abort(c, domain.NewMCPError(domain.ErrInvalidInput, "Invalid TSV body", err.Error(), ""))
			return
		}
		matrix = m
	} else {
		var req templateRequest
		if !s.bind(c, &req) {
			return
		}
		matrix = req.Rows
	}

	cohort, err := s.curation.ImportTable(c.Request.Context(), matrix)
	if err != nil {
		s.metrics.imports.WithLabelValues("rejected").Inc()
		s.abort(c, err)
		return
	}
	s.metrics.imports.WithLabelValues("accepted").Inc()
	c.JSON(http.StatusOK, gin.H{"summary": cohort.Summary(), "cohort": cohort})
}

func (s *Server) handleSanitize(c *gin.Context) {
	var cohort domain.Cohort
	if !s.bind(c, &cohort) {
		return
	}
	if err := cohort.CheckWidth(); err != nil {
		s.abort(c, err)
		return
	}
	n, err := s.curation.Sanitizer().SanitizeCohort(c.Request.Context(), &cohort)
	if err != nil {
		s.abort(c, err)
		return
	}
	s.metrics.corrections.Add(float64(n))
	c.JSON(http.StatusOK, gin.H{"corrections": n, "cohort": &cohort})
}

func (s *Server) handleMerge(c *gin.Context) {
	var req mergeRequest
	if !s.bind(c, &req) {
		return
	}
	merged, err := s.curation.Merger().Merge(c.Request.Context(), req.A, req.B)
	if err != nil {
		s.abort(c, err)
		return
	}
	s.metrics.merges.Inc()
	c.JSON(http.StatusOK, merged)
}

func (s *Server) handleQC(c *gin.Context) {
	var cohort domain.Cohort
	if !s.bind(c, &cohort) {
		return
	}

	resp := qcResponse{Valid: true}
	if err := s.curation.QC().Check(&cohort); err != nil {
		resp.Valid = false
		if errs, ok := err.(*domain.ValidationErrors); ok {
			resp.Errors = errs.Messages()
		} else {
			resp.Errors = []string{err.Error()}
		}
	}
	if cohort.CheckWidth() == nil {
		resp.Conflicts = s.curation.QC().Conflicts(&cohort)
		for _, conflict := range resp.Conflicts {
			for _, corr := range conflict.Corrections {
				s.metrics.conflicts.WithLabelValues(corr.Rule.String()).Inc()
			}
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleListCohorts(c *gin.Context) {
	limit, err := queryInt(c, "limit", 50)
	if err != nil || limit <= 0 || limit > 1000 {
		s.abort(c, domain.NewMCPError(domain.ErrInvalidInput, "limit must be between 1 and 1000", "", ""))
		return
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil || offset < 0 {
		s.abort(c, domain.NewMCPError(domain.ErrInvalidInput, "offset must not be negative", "", ""))
		return
	}

	records, total, err := s.curation.List(c.Request.Context(), limit, offset)
	if err != nil {
		s.abort(c, err)
		return
	}
	if records == nil {
		records = []domain.CohortRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"cohorts": records, "total": total, "limit": limit, "offset": offset})
}

func (s *Server) handleSaveCohort(c *gin.Context) {
	var cohort domain.Cohort
	if !s.bind(c, &cohort) {
		return
	}
	if err := s.curation.QC().Check(&cohort); err != nil {
		s.abort(c, err)
		return
	}
	if err := s.curation.Save(c.Request.Context(), &cohort); err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": cohort.ID, "summary": cohort.Summary()})
}

func (s *Server) handleGetCohort(c *gin.Context) {
	cohort, err := s.curation.Load(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, cohort)
}

// handleExportTable renders a stored cohort back into template form.
func (s *Server) handleExportTable(c *gin.Context) {
	cohort, err := s.curation.Load(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.abort(c, err)
		return
	}
	matrix, err := schema.Matrix(cohort)
	if err != nil {
		s.abort(c, err)
		return
	}
	s.writeTSV(c, matrix)
}

func (s *Server) handleDeleteCohort(c *gin.Context) {
	if err := s.curation.Delete(c.Request.Context(), c.Param("id")); err != nil {
		s.abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) writeTSV(c *gin.Context, matrix [][]string) {
	var buf bytes.Buffer
	if err := schema.WriteTSV(&buf, matrix); err != nil {
		s.abort(c, err)
		return
	}
	c.Data(http.StatusOK, tsvContentType+"; charset=utf-8", buf.Bytes())
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
