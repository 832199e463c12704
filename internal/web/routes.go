package web

import (
	"github.com/go-chi/chi/v5"
	"github.com/klasio/rollcall/internal/attendance"
	"github.com/klasio/rollcall/internal/enroll"
	"github.com/klasio/rollcall/internal/match"
	"github.com/klasio/rollcall/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	engine := match.New(s.detector, s.students, s.index)
	ledger := attendance.New(s.records, s.config.Attendance.CropsDir, s.config.Attendance.CropPadding)

	enrollHandler := handlers.NewEnrollHandler(
		enroll.New(s.detector, s.students), s.students, s.index, s.config.Enrollment.Concurrency)
	attendanceHandler := handlers.NewAttendanceHandler(
		engine, ledger, s.records, s.config.Matching.Threshold)
	studentsHandler := handlers.NewStudentsHandler(s.students, s.index)
	identifyHandler := handlers.NewIdentifyHandler(engine, s.config.Matching.IdentifyTopK)
	statsHandler := handlers.NewStatsHandler(s.students, s.records, s.index)

	// Health check
	s.router.Get("/api/v1/health", handlers.HealthCheck)

	// API routes
	s.router.Route("/api/v1", func(r chi.Router) {
		// Enrollment
		r.Post("/enroll", enrollHandler.Enroll)

		// Attendance
		r.Post("/attendance/mark", attendanceHandler.Mark)
		r.Get("/attendance", attendanceHandler.List)

		// Students
		r.Get("/students", studentsHandler.List)
		r.Delete("/students/{rollNo}", studentsHandler.Delete)
		r.Delete("/classes", studentsHandler.DeleteClass)

		// Identify (diagnostics)
		r.Post("/identify", identifyHandler.Identify)

		// Stats
		r.Get("/stats", statsHandler.Get)
	})
}
