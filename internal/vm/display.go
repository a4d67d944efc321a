package vm

import (
	"fmt"
	"strconv"
	"strings"
)

// displayValue renders a Value the way source-level `show`/string
// interpolation would: floats always carry a decimal
// point, ranges print start:stop or start:step:stop, 2-D arrays print
// their row×col header, strings/chars get quoted, symbols get a leading
// colon.
func displayValue(v Value) string {
	switch v.Kind {
	case KNothing:
		return "nothing"
	case KMissing:
		return "missing"
	case KUndef:
		return "#undef"
	case KBool:
		if v.AsBool() {
			return "true"
		}
		return "false"
	case KChar:
		return "'" + string(rune(v.I)) + "'"
	case KStr:
		return "\"" + v.Str + "\""
	case KSymbol:
		return ":" + v.Str
	case KInt8, KInt16, KInt32, KInt64, KInt128, KUInt8, KUInt16, KUInt32, KUInt64, KUInt128:
		if v.U != 0 && v.I == 0 {
			return strconv.FormatUint(v.U, 10)
		}
		return strconv.FormatInt(v.I, 10)
	case KFloat16, KFloat32, KFloat64:
		return displayFloat(v.F)
	case KRange:
		return displayRange(v.Range)
	case KTuple:
		parts := make([]string, len(v.Tuple))
		for i, e := range v.Tuple {
			parts[i] = displayValue(e)
		}
		return "(" + strings.Join(parts, ", ") + ")"
	case KNamedTuple:
		parts := make([]string, len(v.NamedTup.Names))
		for i, n := range v.NamedTup.Names {
			parts[i] = n + " = " + displayValue(v.NamedTup.Values[i])
		}
		return "(" + strings.Join(parts, ", ") + ")"
	case KArray:
		return displayArray(v.Array)
	case KDict:
		parts := make([]string, len(v.Dict.Keys))
		for i := range v.Dict.Keys {
			parts[i] = displayValue(v.Dict.Keys[i]) + " => " + displayValue(v.Dict.Values[i])
		}
		return "Dict(" + strings.Join(parts, ", ") + ")"
	case KSet:
		parts := make([]string, len(v.Set.Elems))
		for i, e := range v.Set.Elems {
			parts[i] = displayValue(e)
		}
		return "Set([" + strings.Join(parts, ", ") + "])"
	case KStruct:
		parts := make([]string, len(v.StructV.Fields))
		for i, f := range v.StructV.Fields {
			parts[i] = displayValue(f)
		}
		return v.StructV.TypeName + "(" + strings.Join(parts, ", ") + ")"
	case KEnum:
		return v.Enum.TypeName
	case KFunction:
		return v.Function.Name
	case KClosure:
		return v.Closure.Name
	case KModule:
		return v.Module.Name
	}
	return v.TypeName()
}

// displayFloat keeps the Julia-style invariant that a float always shows a
// decimal point even at an integral value (1.0, not 1).
func displayFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

func displayRange(r *RangeValue) string {
	fmtNum := func(f float64) string {
		if r.IsFloat {
			return displayFloat(f)
		}
		return strconv.FormatInt(int64(f), 10)
	}
	if r.Step == 1 {
		return fmt.Sprintf("%s:%s", fmtNum(r.Start), fmtNum(r.Stop))
	}
	return fmt.Sprintf("%s:%s:%s", fmtNum(r.Start), fmtNum(r.Step), fmtNum(r.Stop))
}

// displayArray prints the r×c Matrix{T} header for 2-D arrays
// and a flat bracketed list for 1-D vectors; indexing is column-major but
// display walks rows of the visually transposed layout, matching the
// source language's row-major print convention.
func displayArray(a *ArrayValue) string {
	if len(a.Shape) == 2 {
		rows, cols := a.Shape[0], a.Shape[1]
		var b strings.Builder
		fmt.Fprintf(&b, "%d×%d Matrix{%s}:\n", rows, cols, elemTypeName(Value{Kind: KArray, Array: a}))
		for i := 1; i <= rows; i++ {
			for j := 1; j <= cols; j++ {
				lin := LinearIndex(a.Shape, []int{i, j})
				b.WriteString(displayElem(a.Data, lin))
				if j < cols {
					b.WriteString("  ")
				}
			}
			if i < rows {
				b.WriteString("\n")
			}
		}
		return b.String()
	}
	n := a.Data.Len()
	parts := make([]string, n)
	for i := 0; i < n; i++ {
		parts[i] = displayElem(a.Data, i)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func displayElem(d *ArrayData, i int) string {
	switch d.Kind {
	case ElemFloat64:
		return displayFloat(d.F64[i])
	case ElemFloat32:
		return displayFloat(float64(d.F32[i]))
	case ElemInt64:
		return strconv.FormatInt(d.I64[i], 10)
	case ElemBool:
		if d.Bool[i] {
			return "true"
		}
		return "false"
	case ElemStr:
		return "\"" + d.Str[i] + "\""
	case ElemChar:
		return "'" + string(d.Char[i]) + "'"
	default:
		return displayValue(d.Any[i])
	}
}
