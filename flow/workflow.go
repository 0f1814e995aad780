package flow

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// NodeType identifies a primitive in the closed set understood by the
// dispatcher.
type NodeType string

// The closed primitive set. The document-level aliases "wait" and "memory"
// are rewritten to browser_action and context during decoding.
const (
	NodeBrowserAction NodeType = "browser_action"
	NodeBrowserQuery  NodeType = "browser_query"
	NodeTransform     NodeType = "transform"
	NodeCognition     NodeType = "cognition"
	NodeContext       NodeType = "context"
	NodeRoute         NodeType = "route"
	NodeIterate       NodeType = "iterate"
	NodeHandle        NodeType = "handle"
)

// aliasTypes maps document-level type aliases to their canonical primitive.
var aliasTypes = map[string]NodeType{
	"wait":   NodeBrowserAction,
	"memory": NodeContext,
}

// primitiveTypes is the set of canonical node types.
var primitiveTypes = map[NodeType]bool{
	NodeBrowserAction: true,
	NodeBrowserQuery:  true,
	NodeTransform:     true,
	NodeCognition:     true,
	NodeContext:       true,
	NodeRoute:         true,
	NodeIterate:       true,
	NodeHandle:        true,
}

// NodeData is the typed payload of a decoded node. Each primitive has one
// data struct; documents are decoded into these variants exactly once at
// load time, so the dispatcher never touches raw JSON.
type NodeData interface {
	Validate() error
}

// Node is a decoded primitive invocation.
type Node struct {
	// Type is the canonical primitive type (aliases already rewritten).
	Type NodeType

	// Name is the node's own "name" field when the document gives one,
	// otherwise its handle in workflow.Nodes; inline nodes without a "name"
	// field leave it empty. Used for progress reporting and error messages.
	Name string

	// Data is the type-specific payload.
	Data NodeData
}

// UnmarshalJSON decodes a node into its typed variant. Unknown types fail
// immediately; a document that decodes is structurally sound.
func (n *Node) UnmarshalJSON(data []byte) error {
	var head struct {
		Type string `json:"type"`
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return fmt.Errorf("node is not an object: %w", err)
	}
	if head.Type == "" {
		return fmt.Errorf("%w: node missing type", ErrInvalidWorkflow)
	}

	typ := NodeType(head.Type)
	alias := ""
	if canonical, ok := aliasTypes[head.Type]; ok {
		alias = head.Type
		typ = canonical
	}
	if !primitiveTypes[typ] {
		return fmt.Errorf("%w: %q", ErrUnknownPrimitive, head.Type)
	}

	n.Type = typ
	n.Name = head.Name

	var payload NodeData
	var err error
	switch typ {
	case NodeBrowserAction:
		var d BrowserActionData
		err = json.Unmarshal(data, &d)
		if alias == "wait" && d.Action == "" {
			d.Action = "wait"
		}
		payload = &d
	case NodeBrowserQuery:
		var d BrowserQueryData
		err = json.Unmarshal(data, &d)
		payload = &d
	case NodeTransform:
		var d TransformData
		err = json.Unmarshal(data, &d)
		payload = &d
	case NodeCognition:
		var d CognitionData
		err = json.Unmarshal(data, &d)
		payload = &d
	case NodeContext:
		var d ContextData
		err = json.Unmarshal(data, &d)
		payload = &d
	case NodeRoute:
		var d RouteData
		err = json.Unmarshal(data, &d)
		payload = &d
	case NodeIterate:
		var d IterateData
		err = json.Unmarshal(data, &d)
		payload = &d
	case NodeHandle:
		var d HandleData
		err = json.Unmarshal(data, &d)
		payload = &d
	}
	if err != nil {
		return fmt.Errorf("%w: decoding %s node: %v", ErrInvalidWorkflow, typ, err)
	}
	if err := payload.Validate(); err != nil {
		return fmt.Errorf("%w: %s node: %v", ErrInvalidWorkflow, typ, err)
	}
	n.Data = payload
	return nil
}

// BrowserActionData configures a browser_action node.
type BrowserActionData struct {
	// Action is the sub-action name, matched case-insensitively. Aliases:
	// "goto" for navigate.
	Action string `json:"action"`

	// URL for navigate and openNewTab.
	URL string `json:"url,omitempty"`

	// Target is the natural-language element description for click and type.
	Target string `json:"target,omitempty"`

	// Value is the data argument for type; resolved through templates and
	// state references before dispatch.
	Value any `json:"value,omitempty"`

	// Duration is the wait length in milliseconds (default 1000).
	Duration int `json:"duration,omitempty"`

	// TabName names the tab for openNewTab and switchTab.
	TabName string `json:"tabName,omitempty"`

	// Path is the screenshot output file; a timestamped name is generated
	// when empty.
	Path string `json:"path,omitempty"`

	// FullPage requests a full-page screenshot.
	FullPage bool `json:"fullPage,omitempty"`

	// Selector restricts a screenshot to one element.
	Selector string `json:"selector,omitempty"`
}

// Validate implements NodeData.
func (d *BrowserActionData) Validate() error {
	if d.Action == "" {
		return fmt.Errorf("browser_action requires an action")
	}
	return nil
}

// BrowserQueryData configures a browser_query node.
type BrowserQueryData struct {
	// Method is "extract" or "observe".
	Method string `json:"method"`

	// Instruction is the natural-language query passed to the façade.
	Instruction string `json:"instruction"`

	// Schema constrains extract results; optional.
	Schema *Schema `json:"schema,omitempty"`

	// Output is an optional state path for the full result, in addition to
	// the lastExtract / lastObserve conventions.
	Output string `json:"output,omitempty"`
}

// Validate implements NodeData.
func (d *BrowserQueryData) Validate() error {
	switch strings.ToLower(d.Method) {
	case "extract", "observe":
	default:
		return fmt.Errorf("browser_query method must be extract or observe, got %q", d.Method)
	}
	if d.Instruction == "" {
		return fmt.Errorf("browser_query requires an instruction")
	}
	return nil
}

// TransformData configures a transform node.
type TransformData struct {
	// Input is a value, a state reference, or an array of such; each entry
	// is resolved and passed as a positional argument.
	Input any `json:"input"`

	// Function is a source-level function expression, e.g.
	// "(xs) => xs.filter(x => x.ok)". It runs in a sandboxed interpreter
	// with no host access.
	Function string `json:"function"`

	// Output is an optional state path for the result.
	Output string `json:"output,omitempty"`
}

// Validate implements NodeData.
func (d *TransformData) Validate() error {
	if strings.TrimSpace(d.Function) == "" {
		return fmt.Errorf("transform requires a function expression")
	}
	return nil
}

// CognitionData configures a cognition node.
type CognitionData struct {
	// Prompt is the task instruction for the LLM.
	Prompt string `json:"prompt"`

	// Input is a value or state reference included in the user message.
	Input any `json:"input,omitempty"`

	// Schema constrains the JSON response; enables the single retry.
	Schema *Schema `json:"schema,omitempty"`

	// Model is a provider model identifier; the registry default is used
	// when empty.
	Model string `json:"model,omitempty"`

	// Output is an optional state path for the parsed result.
	Output string `json:"output,omitempty"`
}

// Validate implements NodeData.
func (d *CognitionData) Validate() error {
	if strings.TrimSpace(d.Prompt) == "" {
		return fmt.Errorf("cognition requires a prompt")
	}
	return nil
}

// ContextData configures a context (alias memory) node.
type ContextData struct {
	// Operation is "set", "get" or "delete".
	Operation string `json:"operation"`

	// Data holds path/value pairs for set; values resolve templates first.
	Data map[string]any `json:"data,omitempty"`

	// Path addresses the value for get and delete.
	Path string `json:"path,omitempty"`
}

// Validate implements NodeData.
func (d *ContextData) Validate() error {
	switch strings.ToLower(d.Operation) {
	case "set":
		if len(d.Data) == 0 {
			return fmt.Errorf("context set requires data")
		}
	case "get", "delete":
		if d.Path == "" {
			return fmt.Errorf("context %s requires a path", strings.ToLower(d.Operation))
		}
	default:
		return fmt.Errorf("context operation must be set, get or delete, got %q", d.Operation)
	}
	return nil
}

// RouteCondition is one ordered predicate of a condition-form route.
type RouteCondition struct {
	Path     string `json:"path"`
	Operator string `json:"operator"`
	Value    any    `json:"value,omitempty"`
	Branch   *Node  `json:"branch"`
}

// routeOperators is the closed operator set for condition-form routes.
var routeOperators = map[string]bool{
	"equals": true, "notEquals": true, "contains": true, "exists": true,
	"greater": true, "less": true, "greaterOrEqual": true,
	"lessOrEqual": true, "matches": true,
}

// RouteData configures a route node in either of its two forms.
type RouteData struct {
	// Value form: Value is resolved and stringified, then looked up in
	// Paths; unmatched values fall through to "false" and then "default".
	Value any              `json:"value,omitempty"`
	Paths map[string]*Node `json:"paths,omitempty"`

	// Condition form: ordered predicates; the first match's branch runs.
	Conditions []RouteCondition `json:"conditions,omitempty"`

	// Default runs when no condition matches.
	Default *Node `json:"default,omitempty"`
}

// Validate implements NodeData.
func (d *RouteData) Validate() error {
	if len(d.Paths) == 0 && len(d.Conditions) == 0 {
		return fmt.Errorf("route requires paths or conditions")
	}
	for i, c := range d.Conditions {
		if !routeOperators[c.Operator] {
			return fmt.Errorf("route condition %d: unknown operator %q", i, c.Operator)
		}
		if c.Branch == nil {
			return fmt.Errorf("route condition %d: missing branch", i)
		}
	}
	return nil
}

// NodeSeq is a node body that accepts either a single node or an ordered
// sequence of nodes in the document.
type NodeSeq []*Node

// UnmarshalJSON accepts a single node object or an array of nodes.
func (b *NodeSeq) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var nodes []*Node
		if err := json.Unmarshal(data, &nodes); err != nil {
			return err
		}
		*b = nodes
		return nil
	}
	var node Node
	if err := json.Unmarshal(data, &node); err != nil {
		return err
	}
	*b = NodeSeq{&node}
	return nil
}

// IterateData configures an iterate node.
type IterateData struct {
	// Over is a state reference or literal array; non-arrays iterate zero
	// times.
	Over any `json:"over"`

	// Variable names the binding for the current item.
	Variable string `json:"variable"`

	// Index names the index binding; defaults to "<variable>Index".
	Index string `json:"index,omitempty"`

	// Body is the sub-node or ordered sequence executed per item.
	Body NodeSeq `json:"body"`

	// Limit caps the number of iterations when positive.
	Limit int `json:"limit,omitempty"`

	// ContinueOnError keeps iterating past body failures; default true.
	ContinueOnError *bool `json:"continueOnError,omitempty"`
}

// Validate implements NodeData.
func (d *IterateData) Validate() error {
	if d.Variable == "" {
		return fmt.Errorf("iterate requires a variable name")
	}
	if len(d.Body) == 0 {
		return fmt.Errorf("iterate requires a body")
	}
	return nil
}

// continueOnError applies the default.
func (d *IterateData) continueOnError() bool {
	if d.ContinueOnError == nil {
		return true
	}
	return *d.ContinueOnError
}

// indexName applies the default index binding name.
func (d *IterateData) indexName() string {
	if d.Index != "" {
		return d.Index
	}
	return d.Variable + "Index"
}

// HandleData configures a handle (try/catch/finally) node.
type HandleData struct {
	Try     *Node `json:"try"`
	Catch   *Node `json:"catch,omitempty"`
	Finally *Node `json:"finally,omitempty"`
}

// Validate implements NodeData.
func (d *HandleData) Validate() error {
	if d.Try == nil {
		return fmt.Errorf("handle requires a try node")
	}
	return nil
}

// Phase is a named, ordered bundle of node references used to structure a
// workflow.
type Phase struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Nodes       []string `json:"nodes"`
}

// FlowItem is one entry of a sequence flow: either a "phase:" / "node:"
// reference or an inline anonymous node.
type FlowItem struct {
	Ref  string
	Node *Node
}

// UnmarshalJSON accepts a reference string or an inline node object.
func (f *FlowItem) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, `"`) {
		return json.Unmarshal(data, &f.Ref)
	}
	var node Node
	if err := json.Unmarshal(data, &node); err != nil {
		return err
	}
	f.Node = &node
	return nil
}

// Flow is the workflow's top-level order: a single primitive invocation or a
// sequence of references and inline nodes.
type Flow struct {
	Single   *Node
	Sequence []FlowItem
}

// UnmarshalJSON accepts a node object or a sequence array.
func (f *Flow) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		return json.Unmarshal(data, &f.Sequence)
	}
	var node Node
	if err := json.Unmarshal(data, &node); err != nil {
		return err
	}
	f.Single = &node
	return nil
}

// Items returns the flow as a uniform item list.
func (f *Flow) Items() []FlowItem {
	if f == nil {
		return nil
	}
	if f.Single != nil {
		return []FlowItem{{Node: f.Single}}
	}
	return f.Sequence
}

// Workflow is the top-level document interpreted by the engine.
type Workflow struct {
	ID          string            `json:"id"`
	Name        string            `json:"name,omitempty"`
	Description string            `json:"description,omitempty"`
	Phases      map[string]*Phase `json:"phases,omitempty"`
	Nodes       map[string]*Node  `json:"nodes,omitempty"`
	Flow        *Flow             `json:"flow"`
}

// ParseWorkflow decodes a JSON workflow document into typed nodes, failing
// with ErrInvalidWorkflow on any malformed or unknown node.
func ParseWorkflow(data []byte) (*Workflow, error) {
	var wf Workflow
	if err := json.Unmarshal(data, &wf); err != nil {
		if strings.Contains(err.Error(), ErrInvalidWorkflow.Error()) {
			return nil, err
		}
		if strings.Contains(err.Error(), ErrUnknownPrimitive.Error()) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidWorkflow, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidWorkflow, err)
	}
	for name, node := range wf.Nodes {
		if node != nil && node.Name == "" {
			node.Name = name
		}
	}
	return &wf, nil
}

// ParseWorkflowYAML decodes a YAML workflow document by normalizing it
// through JSON, so node decoding rules apply identically.
func ParseWorkflowYAML(data []byte) (*Workflow, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWorkflow, err)
	}
	jsonBytes, err := json.Marshal(normalizeYAML(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWorkflow, err)
	}
	return ParseWorkflow(jsonBytes)
}

// LoadWorkflowFile reads and parses a workflow document, choosing the codec
// by file extension (.yaml/.yml versus JSON).
func LoadWorkflowFile(path string) (*Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading workflow: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseWorkflowYAML(data)
	default:
		return ParseWorkflow(data)
	}
}

// normalizeYAML converts yaml.v3's map[string]any-with-any-keys shapes into
// JSON-encodable values.
func normalizeYAML(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = normalizeYAML(item)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[fmt.Sprint(k)] = normalizeYAML(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalizeYAML(item)
		}
		return out
	default:
		return v
	}
}
