package proc

// Registers is an interface for a generic register type. The
// interface encapsulates the generic values / actions
// we need independent of arch.
type Registers interface {
	PC() uint64
	SP() uint64
	BP() uint64
}
