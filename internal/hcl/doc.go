// Package hcl reads and writes canvas documents. A document is a flat list
// of node and connection blocks:
//
//	node "value" "greeting" {
//	  type  = "string"
//	  value = "hello"
//	}
//
//	node "action" "print" {
//	  target = "stdout"
//	  call {
//	    target_type = "*github.com/vk/actiongraph/modules/print.Printer"
//	    member      = "Println"
//	    kind        = "method"
//	    arg_types   = ["any"]
//	  }
//	}
//
//	connection {
//	  from = "greeting.outputs[0]"
//	  to   = "print.inputs[1]"
//	}
//
// A canvas may be split over several files in one directory; LoadPath
// merges them. Loading goes through hclparse and gohcl; writing goes
// through hclwrite.
package hcl
