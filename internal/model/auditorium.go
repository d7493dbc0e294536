package model

// Auditorium is a screening room inside a cinema.  It owns its seats:
// deleting an auditorium removes every seat that references it.
//
// Fields:
//
//	ID       – primary key identifier.
//	CinemaID – cinema the auditorium belongs to.
//	Name     – display name, unique within the cinema.
type Auditorium struct {
	ID       int    // auditoriums.id
	CinemaID int    // auditoriums.cinema_id
	Name     string // auditoriums.name
}
