// Package domain defines submissions, rubrics and the artifacts AI tasks
// generate for them, together with the generation status state machine
// every task-driven field follows: PENDING, INPROGRESS, then COMPLETED or
// ERROR. Generated child rows are stamped GENERATED.
package domain
