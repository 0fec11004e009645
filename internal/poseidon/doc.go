// Package poseidon implements the Poseidon permutation over the BN254 scalar
// field, together with the deterministic parameter generation it depends on.
//
// Overview:
//   - Round constants and the MDS matrix are derived from a Grain LFSR seeded
//     with the permutation shape, so two processes with the same (field,
//     width) always agree on the constants
//   - The dense MDS matrix is factored into a pre-sparse matrix plus one
//     sparse matrix per partial round, reducing partial-round mixing from
//     O(width^2) to O(width) multiplications
//   - The permutation itself is generic over an evaluation Context, so the
//     same round schedule computes field values natively or emits gnark
//     constraints in a circuit
//
// Hash2 and Hash4 are the only entry points the rest of the system uses;
// both fix a domain tag in state slot 0 so hashes of different arity can
// never collide.
package poseidon
