package server

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"polyfit/internal/config"
	"polyfit/internal/genotype"
	"polyfit/internal/mesh"
	"polyfit/internal/model"
	"polyfit/internal/stats"
	"polyfit/pkg/polyfit"
)

type encodeRequest struct {
	Bits   int                `json:"bits" binding:"gte=0,lte=16"`
	Ranges []config.RangeSpec `json:"ranges" binding:"required,min=1,max=6"`
	Values []float64          `json:"values" binding:"required,min=1,max=6"`
}

type encodedSegment struct {
	Name  string  `json:"name"`
	Code  string  `json:"code"`
	Value float64 `json:"value"`
}

type encodeResponse struct {
	Bits     int              `json:"bits"`
	Genotype model.Genotype   `json:"genotype"`
	Segments []encodedSegment `json:"segments"`
}

type runStatus struct {
	ID             string         `json:"id"`
	Kind           model.Kind     `json:"kind"`
	State          model.RunState `json:"state"`
	PopulationSize int            `json:"population_size"`
}

type evolveResponse struct {
	runStatus
	Generations int              `json:"generations"`
	Best        model.Organism   `json:"best"`
	Elites      []model.Organism `json:"elites"`
}

type listResponse struct {
	Live []string              `json:"live"`
	Runs []stats.RunIndexEntry `json:"runs"`
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// encode snaps each value to its nearest quantized level and returns the
// binary segment for it.
func (s *Server) encode(c *gin.Context) {
	var req encodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, fmt.Errorf("%w: %v", polyfit.ErrConfiguration, err))
		return
	}
	if len(req.Values) != len(req.Ranges) {
		s.fail(c, fmt.Errorf("%w: %d values for %d ranges", polyfit.ErrConfiguration, len(req.Values), len(req.Ranges)))
		return
	}
	ranges := make([]model.Range, len(req.Ranges))
	for i, r := range req.Ranges {
		ranges[i] = model.Range{Min: r.Min, Max: r.Max}
	}
	codec, err := genotype.NewCodec(ranges, req.Bits)
	if err != nil {
		s.fail(c, err)
		return
	}
	g, snapped, err := codec.Encode(req.Values)
	if err != nil {
		s.fail(c, err)
		return
	}
	codes, err := genotype.Split(g, codec.Bits())
	if err != nil {
		s.fail(c, err)
		return
	}
	names := model.KindQuadric.CoefficientNames()
	resp := encodeResponse{Bits: codec.Bits(), Genotype: g, Segments: make([]encodedSegment, len(codes))}
	for i, code := range codes {
		resp.Segments[i] = encodedSegment{Name: names[i], Code: code, Value: snapped[i]}
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) configure(c *gin.Context) {
	var req config.RunFile
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, fmt.Errorf("%w: %v", polyfit.ErrConfiguration, err))
		return
	}
	if err := req.Validate(); err != nil {
		s.fail(c, err)
		return
	}
	if req.SamplesCSV != "" {
		s.fail(c, fmt.Errorf("%w: samples_csv is not accepted over HTTP, send samples", polyfit.ErrConfiguration))
		return
	}
	run, err := s.client.Configure(req.RunConfig())
	if err != nil {
		s.fail(c, err)
		return
	}
	runsConfigured.WithLabelValues(string(run.Kind())).Inc()
	liveRuns.Set(float64(len(s.client.Live())))
	c.JSON(http.StatusCreated, describeRun(run))
}

func (s *Server) listRuns(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.fail(c, fmt.Errorf("%w: limit must be a non-negative integer", polyfit.ErrConfiguration))
			return
		}
		limit = n
	}
	records, err := s.client.Runs(c.Request.Context(), limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	resp := listResponse{Live: s.client.Live(), Runs: make([]stats.RunIndexEntry, len(records))}
	for i, record := range records {
		resp.Runs[i] = stats.IndexEntryOf(record)
	}
	c.JSON(http.StatusOK, resp)
}

// getRun answers from the live handle when one is registered, otherwise
// from the store.
func (s *Server) getRun(c *gin.Context) {
	id := c.Param("id")
	if run, ok := s.client.Lookup(id); ok {
		c.JSON(http.StatusOK, run.Summary())
		return
	}
	record, ok, err := s.client.GetRun(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	if !ok {
		s.fail(c, fmt.Errorf("%w: %s", errRunNotFound, id))
		return
	}
	c.JSON(http.StatusOK, record)
}

func (s *Server) deleteRun(c *gin.Context) {
	id := c.Param("id")
	s.client.Forget(id)
	if err := s.client.DeleteRun(c.Request.Context(), id); err != nil {
		s.fail(c, err)
		return
	}
	liveRuns.Set(float64(len(s.client.Live())))
	c.Status(http.StatusNoContent)
}

func (s *Server) seed(c *gin.Context) {
	run, ok := s.lookup(c)
	if !ok {
		return
	}
	if err := run.Seed(); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, describeRun(run))
}

// evolve runs the generational loop to completion and persists the result.
func (s *Server) evolve(c *gin.Context) {
	run, ok := s.lookup(c)
	if !ok {
		return
	}
	history, err := run.Evolve(c.Request.Context())
	if err != nil {
		runsFinished.WithLabelValues(string(run.Kind()), "failed").Inc()
		s.fail(c, err)
		return
	}
	last := history[len(history)-1]
	runsFinished.WithLabelValues(string(run.Kind()), string(run.State())).Inc()
	runGenerations.Observe(float64(len(history)))
	runBestError.Observe(last.Best.Error)

	if _, err := s.client.Save(c.Request.Context(), run); err != nil {
		s.fail(c, fmt.Errorf("persist run %s: %w", run.ID(), err))
		return
	}
	c.JSON(http.StatusOK, evolveResponse{
		runStatus:   describeRun(run),
		Generations: len(history),
		Best:        last.Best,
		Elites:      run.Elites(),
	})
}

func (s *Server) best(c *gin.Context) {
	run, ok := s.lookup(c)
	if !ok {
		return
	}
	floor := polyfit.DefaultFitnessFloor
	if raw := c.Query("floor"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 || v > 1 {
			s.fail(c, fmt.Errorf("%w: floor must be a number in [0, 1]", polyfit.ErrConfiguration))
			return
		}
		floor = v
	}
	organisms, err := run.BestOrganisms(floor)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"floor": floor, "organisms": organisms})
}

func (s *Server) history(c *gin.Context) {
	run, ok := s.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": run.History()})
}

func (s *Server) averageError(c *gin.Context) {
	run, ok := s.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"series": run.AverageErrorSeries()})
}

func (s *Server) mesh(c *gin.Context) {
	run, ok := s.lookup(c)
	if !ok {
		return
	}
	steps := 0
	if raw := c.Query("steps"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 || n > mesh.MaxSteps {
			s.fail(c, fmt.Errorf("%w: steps must be an integer in [0, %d]", polyfit.ErrConfiguration, mesh.MaxSteps))
			return
		}
		steps = n
	}
	data, err := run.Mesh(steps)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, data)
}

func (s *Server) lookup(c *gin.Context) (*polyfit.Run, bool) {
	id := c.Param("id")
	run, ok := s.client.Lookup(id)
	if !ok {
		s.fail(c, fmt.Errorf("%w: %s", errRunNotFound, id))
		return nil, false
	}
	return run, true
}

func describeRun(run *polyfit.Run) runStatus {
	return runStatus{
		ID:             run.ID(),
		Kind:           run.Kind(),
		State:          run.State(),
		PopulationSize: run.PopulationSize(),
	}
}
