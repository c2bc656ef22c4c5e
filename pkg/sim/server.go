/*
Copyright The Modelserve Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package sim is a local stand-in for the Modelserve platform. It
// implements the control-plane and runtime HTTP APIs against an in-memory
// store so clients can be developed and tested without a cloud account.
// It emulates lifecycle transitions and scale-to-zero; it does not serve
// real models.
package sim

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"k8s.io/klog/v2"

	inferencev1 "github.com/modelserve-ai/inferctl/pkg/apis/inference/v1"
	"github.com/modelserve-ai/inferctl/pkg/platform"
)

const gracefulShutdownTimeout = 15 * time.Second

// Options configures the simulator.
type Options struct {
	Port string
	// Secret enables bearer token verification when non-empty.
	Secret string
	// ProvisioningDelay is how long resources stay in transitional states.
	ProvisioningDelay time.Duration
	// EvalInterval drives alarm evaluation and the idle check.
	EvalInterval time.Duration
	// IdleAfter is the idle span before a MinCapacity=0 endpoint scales to
	// zero.
	IdleAfter time.Duration
}

func (o *Options) applyDefaults() {
	if o.Port == "" {
		o.Port = "8780"
	}
	if o.ProvisioningDelay <= 0 {
		o.ProvisioningDelay = 3 * time.Second
	}
	if o.EvalInterval <= 0 {
		o.EvalInterval = 5 * time.Second
	}
	if o.IdleAfter <= 0 {
		o.IdleAfter = 2 * time.Minute
	}
}

// Server is the simulator's HTTP front end.
type Server struct {
	opts      Options
	store     *Store
	evaluator *Evaluator
	engine    *gin.Engine
}

func NewServer(opts Options) *Server {
	opts.applyDefaults()

	store := NewStore(opts.ProvisioningDelay)
	s := &Server{
		opts:      opts,
		store:     store,
		evaluator: NewEvaluator(store),
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.LoggerWithWriter(gin.DefaultWriter, "/healthz", "/metrics"), gin.Recovery())

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "ok"})
	})
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := engine.Group("/v1")
	v1.Use(s.authMiddleware())

	v1.POST("/models", s.createModel)
	v1.GET("/models", s.listModels)
	v1.GET("/models/:name", s.getModel)
	v1.DELETE("/models/:name", s.deleteModel)

	v1.POST("/endpoint-configs", s.createEndpointConfig)
	v1.GET("/endpoint-configs", s.listEndpointConfigs)
	v1.GET("/endpoint-configs/:name", s.getEndpointConfig)
	v1.DELETE("/endpoint-configs/:name", s.deleteEndpointConfig)

	v1.POST("/endpoints", s.createEndpoint)
	v1.GET("/endpoints", s.listEndpoints)
	v1.GET("/endpoints/:name", s.getEndpoint)
	v1.PUT("/endpoints/:name", s.updateEndpoint)
	v1.DELETE("/endpoints/:name", s.deleteEndpoint)

	v1.POST("/inference-components", s.createInferenceComponent)
	v1.GET("/inference-components", s.listInferenceComponents)
	v1.GET("/inference-components/:name", s.getInferenceComponent)
	v1.PUT("/inference-components/:name", s.updateInferenceComponent)
	v1.DELETE("/inference-components/:name", s.deleteInferenceComponent)

	v1.PUT("/scaling-policies", s.putScalingPolicy)
	v1.GET("/scaling-policies", s.listScalingPolicies)
	v1.DELETE("/scaling-policies/:name", s.deleteScalingPolicy)

	v1.PUT("/alarms", s.putMetricAlarm)
	v1.GET("/alarms", s.listAlarms)
	v1.DELETE("/alarms/:name", s.deleteAlarm)

	v1.POST("/endpoints/:name/invocations", s.invoke)
	v1.POST("/endpoints/:name/invocations-stream", s.invokeStream)

	s.engine = engine
	return s
}

// Handler exposes the router for httptest servers.
func (s *Server) Handler() http.Handler { return s.engine.Handler() }

// Store exposes the backing store; tests use it to fast-forward state.
func (s *Server) Store() *Store { return s.store }

// Evaluator exposes the alarm evaluator for tests.
func (s *Server) Evaluator() *Evaluator { return s.evaluator }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	evalCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go s.evaluator.Run(evalCtx, s.opts.EvalInterval, s.opts.IdleAfter)

	server := &http.Server{
		Addr:    ":" + s.opts.Port,
		Handler: s.engine.Handler(),
	}
	errCh := make(chan error, 1)
	go func() {
		klog.Infof("modelserve-sim listening on :%s", s.opts.Port)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	klog.Info("shutting down HTTP server ...")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		klog.Errorf("server shutdown failed: %v", err)
	}
	s.store.Close()
	klog.Info("HTTP server exited")
	return nil
}

func (s *Server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.opts.Secret == "" {
			c.Next()
			return
		}
		token := platform.ExtractBearer(c.Request)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": gin.H{
				"code":    "MissingAuthentication",
				"message": "no bearer token",
			}})
			return
		}
		subject, err := platform.VerifyToken(token, s.opts.Secret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": gin.H{
				"code":    "InvalidAuthentication",
				"message": err.Error(),
			}})
			return
		}
		c.Set("subject", subject)
		c.Next()
	}
}

// abortWithError renders a store error in the platform's error envelope.
func abortWithError(c *gin.Context, err error) {
	var apiErr *platform.APIError
	if !errors.As(err, &apiErr) {
		apiErr = &platform.APIError{
			Code:       platform.CodeInternalFailure,
			Message:    err.Error(),
			StatusCode: http.StatusInternalServerError,
		}
	}
	c.Header("X-Request-Id", c.GetHeader("X-Request-Id"))
	c.AbortWithStatusJSON(apiErr.StatusCode, gin.H{"error": apiErr})
}

// Control-plane handlers. Each one decodes the request, delegates to the
// store, and renders either the stored resource or an error envelope.

func (s *Server) createModel(c *gin.Context) {
	var model inferencev1.Model
	if err := c.ShouldBindJSON(&model); err != nil {
		abortWithError(c, errValidation("invalid model body: %v", err))
		return
	}
	if s.store.SeenToken(c.GetHeader("X-Client-Token"), "model/"+model.Name) {
		c.JSON(http.StatusOK, &model)
		return
	}
	out, err := s.store.CreateModel(&model)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

func (s *Server) listModels(c *gin.Context) {
	c.JSON(http.StatusOK, inferencev1.ModelList{Items: s.store.ListModels()})
}

func (s *Server) getModel(c *gin.Context) {
	out, err := s.store.GetModel(c.Param("name"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) deleteModel(c *gin.Context) {
	if err := s.store.DeleteModel(c.Param("name")); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) createEndpointConfig(c *gin.Context) {
	var cfg inferencev1.EndpointConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		abortWithError(c, errValidation("invalid endpoint config body: %v", err))
		return
	}
	if s.store.SeenToken(c.GetHeader("X-Client-Token"), "endpoint-config/"+cfg.Name) {
		c.JSON(http.StatusOK, &cfg)
		return
	}
	out, err := s.store.CreateEndpointConfig(&cfg)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

func (s *Server) listEndpointConfigs(c *gin.Context) {
	c.JSON(http.StatusOK, inferencev1.EndpointConfigList{Items: s.store.ListEndpointConfigs()})
}

func (s *Server) getEndpointConfig(c *gin.Context) {
	out, err := s.store.GetEndpointConfig(c.Param("name"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) deleteEndpointConfig(c *gin.Context) {
	if err := s.store.DeleteEndpointConfig(c.Param("name")); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) createEndpoint(c *gin.Context) {
	var ep inferencev1.Endpoint
	if err := c.ShouldBindJSON(&ep); err != nil {
		abortWithError(c, errValidation("invalid endpoint body: %v", err))
		return
	}
	if s.store.SeenToken(c.GetHeader("X-Client-Token"), "endpoint/"+ep.Name) {
		out, err := s.store.GetEndpoint(ep.Name)
		if err == nil {
			c.JSON(http.StatusOK, out)
			return
		}
	}
	out, err := s.store.CreateEndpoint(&ep)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

func (s *Server) listEndpoints(c *gin.Context) {
	c.JSON(http.StatusOK, inferencev1.EndpointList{Items: s.store.ListEndpoints()})
}

func (s *Server) getEndpoint(c *gin.Context) {
	out, err := s.store.GetEndpoint(c.Param("name"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) updateEndpoint(c *gin.Context) {
	var in inferencev1.Endpoint
	if err := c.ShouldBindJSON(&in); err != nil {
		abortWithError(c, errValidation("invalid endpoint body: %v", err))
		return
	}
	out, err := s.store.UpdateEndpoint(c.Param("name"), in.ConfigName)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) deleteEndpoint(c *gin.Context) {
	if err := s.store.DeleteEndpoint(c.Param("name")); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

func (s *Server) createInferenceComponent(c *gin.Context) {
	var ic inferencev1.InferenceComponent
	if err := c.ShouldBindJSON(&ic); err != nil {
		abortWithError(c, errValidation("invalid inference component body: %v", err))
		return
	}
	if s.store.SeenToken(c.GetHeader("X-Client-Token"), "inference-component/"+ic.Name) {
		out, err := s.store.GetInferenceComponent(ic.Name)
		if err == nil {
			c.JSON(http.StatusOK, out)
			return
		}
	}
	out, err := s.store.CreateInferenceComponent(&ic)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

func (s *Server) listInferenceComponents(c *gin.Context) {
	items := s.store.ListInferenceComponents(c.Query("endpoint"))
	c.JSON(http.StatusOK, inferencev1.InferenceComponentList{Items: items})
}

func (s *Server) getInferenceComponent(c *gin.Context) {
	out, err := s.store.GetInferenceComponent(c.Param("name"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) updateInferenceComponent(c *gin.Context) {
	var in struct {
		CopyCount int32 `json:"copyCount"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		abortWithError(c, errValidation("invalid component update body: %v", err))
		return
	}
	out, err := s.store.SetInferenceComponentCopies(c.Param("name"), in.CopyCount)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) deleteInferenceComponent(c *gin.Context) {
	if err := s.store.DeleteInferenceComponent(c.Param("name")); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

func (s *Server) putScalingPolicy(c *gin.Context) {
	var policy inferencev1.ScalingPolicy
	if err := c.ShouldBindJSON(&policy); err != nil {
		abortWithError(c, errValidation("invalid scaling policy body: %v", err))
		return
	}
	out, err := s.store.PutScalingPolicy(&policy)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) listScalingPolicies(c *gin.Context) {
	items := s.store.ListScalingPolicies(c.Query("resourceId"))
	c.JSON(http.StatusOK, inferencev1.ScalingPolicyList{Items: items})
}

func (s *Server) deleteScalingPolicy(c *gin.Context) {
	if err := s.store.DeleteScalingPolicy(c.Param("name")); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) putMetricAlarm(c *gin.Context) {
	var alarm inferencev1.MetricAlarm
	if err := c.ShouldBindJSON(&alarm); err != nil {
		abortWithError(c, errValidation("invalid alarm body: %v", err))
		return
	}
	out, err := s.store.PutMetricAlarm(&alarm)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) listAlarms(c *gin.Context) {
	c.JSON(http.StatusOK, inferencev1.MetricAlarmList{Items: s.store.ListAlarms()})
}

func (s *Server) deleteAlarm(c *gin.Context) {
	if err := s.store.DeleteAlarm(c.Param("name")); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
