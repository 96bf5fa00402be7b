package redisstore

import "fmt"

// Key layout, all under the configured prefix:
//
//	{prefix}:employee:{id}                  JSON document
//	{prefix}:employees                      set of employee ids
//	{prefix}:project:{id}                   JSON document
//	{prefix}:projects                       set of project ids
//	{prefix}:requirements:{project_id}      JSON array in stored order
//	{prefix}:allocation:{id}                JSON document
//	{prefix}:allocations:active             set of active allocation ids
//	{prefix}:allocations:employee:{id}      active allocation ids of an employee
//	{prefix}:allocations:project:{id}       active allocation ids of a project
type keys struct {
	prefix string
}

func (k keys) employee(id string) string     { return fmt.Sprintf("%s:employee:%s", k.prefix, id) }
func (k keys) employees() string             { return k.prefix + ":employees" }
func (k keys) project(id string) string      { return fmt.Sprintf("%s:project:%s", k.prefix, id) }
func (k keys) projects() string              { return k.prefix + ":projects" }
func (k keys) requirements(id string) string { return fmt.Sprintf("%s:requirements:%s", k.prefix, id) }
func (k keys) allocation(id string) string   { return fmt.Sprintf("%s:allocation:%s", k.prefix, id) }
func (k keys) activeAllocations() string     { return k.prefix + ":allocations:active" }

func (k keys) employeeAllocations(id string) string {
	return fmt.Sprintf("%s:allocations:employee:%s", k.prefix, id)
}

func (k keys) projectAllocations(id string) string {
	return fmt.Sprintf("%s:allocations:project:%s", k.prefix, id)
}
